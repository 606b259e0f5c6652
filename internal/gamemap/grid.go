package gamemap

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/gravitas-games/hexrts/internal/hex"
)

var (
	// ErrTileExists is returned when a coordinate already holds a tile.
	ErrTileExists = errors.New("tile already exists")
	// ErrNilTile is returned when adding a nil tile.
	ErrNilTile = errors.New("nil tile")
)

// Grid owns every tile of the map keyed by axial coordinate.
//
// The tile map is guarded so a loader goroutine may populate the grid while
// another waits for it. Tile state itself belongs to the simulation goroutine.
type Grid struct {
	mu    sync.RWMutex
	tiles map[hex.Axial]*Tile

	// forwarders holds the listener each tile carries on behalf of the grid.
	forwarders map[hex.Axial]ListenerID
	listeners  ownerListeners
	logger     *slog.Logger
}

// Option configures a Grid.
type Option func(*Grid)

// WithLogger sets the logger used for listener faults.
func WithLogger(l *slog.Logger) Option {
	return func(g *Grid) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGrid creates an empty grid.
func NewGrid(opts ...Option) *Grid {
	g := &Grid{
		tiles:      make(map[hex.Axial]*Tile),
		forwarders: make(map[hex.Axial]ListenerID),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Add inserts t keyed by its coordinate.
func (g *Grid) Add(t *Tile) error {
	if t == nil {
		return ErrNilTile
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.tiles[t.coord]; ok {
		return fmt.Errorf("%w at %v", ErrTileExists, t.coord)
	}
	t.logger = g.logger
	g.tiles[t.coord] = t
	g.forwarders[t.coord] = t.OnOwnerChanged(g.forward)
	return nil
}

// Remove deletes the tile at c and detaches the grid's listener from it.
func (g *Grid) Remove(c hex.Axial) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tiles[c]
	if !ok {
		return false
	}
	t.RemoveListener(g.forwarders[c])
	delete(g.forwarders, c)
	delete(g.tiles, c)
	return true
}

// Clear removes every tile. Grid-level listeners stay registered.
func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for c, t := range g.tiles {
		t.RemoveListener(g.forwarders[c])
	}
	g.tiles = make(map[hex.Axial]*Tile)
	g.forwarders = make(map[hex.Axial]ListenerID)
}

// GetTile returns the tile at c. A missing tile is not an error.
func (g *Grid) GetTile(c hex.Axial) (*Tile, bool) {
	g.mu.RLock()
	t, ok := g.tiles[c]
	g.mu.RUnlock()
	return t, ok
}

// Neighbor returns the tile adjacent to c in direction d.
func (g *Grid) Neighbor(c hex.Axial, d int) (*Tile, bool) {
	return g.GetTile(hex.Neighbor(c, d))
}

// Len returns the number of tiles.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tiles)
}

// Tiles yields every tile. Each range takes a snapshot of the coordinates
// when it starts, so the sequence is restartable and tolerates tiles being
// added or removed mid-iteration: removed tiles are skipped, added ones
// appear on the next range.
func (g *Grid) Tiles() iter.Seq[*Tile] {
	return func(yield func(*Tile) bool) {
		for _, c := range g.Coords() {
			t, ok := g.GetTile(c)
			if !ok {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Coords returns a snapshot of all occupied coordinates in no particular order.
func (g *Grid) Coords() []hex.Axial {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]hex.Axial, 0, len(g.tiles))
	for c := range g.tiles {
		out = append(out, c)
	}
	return out
}

// OnOwnerChanged registers fn for ownership changes of any tile in the grid,
// including tiles added later.
func (g *Grid) OnOwnerChanged(fn OwnerChangedFunc) ListenerID {
	if fn == nil {
		return 0
	}
	return g.listeners.add(fn)
}

// RemoveListener unregisters a grid-level listener.
func (g *Grid) RemoveListener(id ListenerID) bool {
	return g.listeners.remove(id)
}

func (g *Grid) forward(t *Tile, previous, current int) {
	g.listeners.notify(g.logger, t, previous, current)
}

// OwnedBy returns the tiles held by owner.
func (g *Grid) OwnedBy(owner int) []*Tile {
	var out []*Tile
	for t := range g.Tiles() {
		if t.OwnedBy(owner) {
			out = append(out, t)
		}
	}
	return out
}
