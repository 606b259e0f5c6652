// Package territory computes and tracks the borders between differently
// owned regions of the hex grid.
package territory

import (
	"math/bits"
	"strings"

	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/internal/hex"
)

// EdgeMask has bit i set when edge i (hex.Directions order) of a tile is a
// border.
type EdgeMask uint8

// AllEdges is the mask of an owned tile with no friendly neighbour.
const AllEdges EdgeMask = 1<<6 - 1

// Has reports whether edge d is set.
func (m EdgeMask) Has(d int) bool { return m&(1<<hex.Direction(d)) != 0 }

// Count returns the number of border edges.
func (m EdgeMask) Count() int { return bits.OnesCount8(uint8(m & AllEdges)) }

// String renders the mask as six flags, direction 0 first, e.g. "x..x.x".
func (m EdgeMask) String() string {
	var b strings.Builder
	for d := 0; d < 6; d++ {
		if m.Has(d) {
			b.WriteByte('x')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// TileSource looks tiles up by coordinate. *gamemap.Grid implements it.
type TileSource interface {
	GetTile(c hex.Axial) (*gamemap.Tile, bool)
}

// CalculateEdgeMask returns the border edges of t: an edge is set when the
// neighbour across it is missing, neutral, or held by another owner. Neutral
// tiles have no borders. The result depends only on current grid state.
func CalculateEdgeMask(t *gamemap.Tile, tiles TileSource) EdgeMask {
	if t == nil || !t.IsOwned() {
		return 0
	}
	owner := t.Owner()
	var m EdgeMask
	for d := 0; d < 6; d++ {
		n, ok := tiles.GetTile(hex.Neighbor(t.Coord(), d))
		if !ok || n.Owner() != owner {
			m |= 1 << d
		}
	}
	return m
}

// CalculateAll computes the mask of every owned tile with at least one
// border edge.
func CalculateAll(g *gamemap.Grid) map[hex.Axial]EdgeMask {
	out := make(map[hex.Axial]EdgeMask)
	for t := range g.Tiles() {
		if m := CalculateEdgeMask(t, g); m != 0 {
			out[t.Coord()] = m
		}
	}
	return out
}
