package game

import (
	"math"

	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/internal/hex"
)

// SpawnPoints picks n starting tiles spread evenly around a ring two thirds
// of the way out from the origin. Each point is the buildable, unowned tile
// nearest its ideal position. Fewer than n points are returned when the map
// runs out of suitable tiles. The result depends only on the grid.
func (w *World) SpawnPoints(n, mapRadius int) []hex.Axial {
	if n <= 0 {
		return nil
	}
	ringRadius := max(1, mapRadius*2/3)
	ring := hex.Ring(hex.Axial{}, ringRadius)
	if len(ring) == 0 {
		ring = []hex.Axial{{}}
	}

	taken := make(map[hex.Axial]bool)
	var out []hex.Axial
	for i := range n {
		ideal := ring[int(math.Round(float64(i)*float64(len(ring))/float64(n)))%len(ring)]
		if c, ok := w.nearestSite(ideal, 2*mapRadius, taken); ok {
			out = append(out, c)
			taken[c] = true
		}
	}
	return out
}

// nearestSite spirals out from c to the first tile a player could settle.
// Tiles next to an earlier pick are skipped so spawns never touch.
func (w *World) nearestSite(c hex.Axial, limit int, taken map[hex.Axial]bool) (hex.Axial, bool) {
	for _, cand := range hex.Spiral(c, limit) {
		t, ok := w.Grid.GetTile(cand)
		if !ok || !settleable(t) || near(cand, taken) {
			continue
		}
		return cand, true
	}
	return hex.Axial{}, false
}

func settleable(t *gamemap.Tile) bool {
	return t.Buildable && t.Passable && !t.IsOwned()
}

func near(c hex.Axial, taken map[hex.Axial]bool) bool {
	for t := range taken {
		if hex.DistanceAxial(c, t) <= 2 {
			return true
		}
	}
	return false
}
