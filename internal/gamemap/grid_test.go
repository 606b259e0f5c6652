package gamemap

import (
	"errors"
	"testing"
	"time"

	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/internal/tick"
)

func diskGrid(t *testing.T, radius int, terrain TerrainType) *Grid {
	t.Helper()
	g := NewGrid(WithLogger(quietLogger()))
	for _, c := range hex.Disk(hex.Axial{}, radius) {
		if err := g.Add(NewTile(c, terrain)); err != nil {
			t.Fatalf("add %v: %v", c, err)
		}
	}
	return g
}

func TestGridAddAndLookup(t *testing.T) {
	g := NewGrid()
	if err := g.Add(nil); !errors.Is(err, ErrNilTile) {
		t.Fatalf("expected ErrNilTile, got %v", err)
	}
	tile := NewTile(hex.Axial{Q: 1, R: 2}, Plains)
	if err := g.Add(tile); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.Add(NewTile(hex.Axial{Q: 1, R: 2}, Forest)); !errors.Is(err, ErrTileExists) {
		t.Fatalf("expected ErrTileExists, got %v", err)
	}
	if got, ok := g.GetTile(hex.Axial{Q: 1, R: 2}); !ok || got != tile {
		t.Fatalf("lookup returned %v, %v", got, ok)
	}
	if _, ok := g.GetTile(hex.Axial{Q: 9, R: 9}); ok {
		t.Fatalf("absent coordinate must report no tile")
	}
	if n, ok := g.Neighbor(hex.Axial{Q: 0, R: 2}, 0); !ok || n != tile {
		t.Fatalf("east neighbour lookup failed")
	}
}

func TestTilesIsRestartable(t *testing.T) {
	g := diskGrid(t, 2, Plains)
	count := func() int {
		n := 0
		for range g.Tiles() {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 19 || b != 19 {
		t.Fatalf("expected 19 tiles on both passes, got %d and %d", a, b)
	}
}

func TestTilesToleratesRemovalDuringIteration(t *testing.T) {
	g := diskGrid(t, 2, Plains)
	seen := 0
	for tile := range g.Tiles() {
		seen++
		if tile.Coord() == (hex.Axial{}) {
			continue
		}
		g.Remove(tile.Coord())
		g.Remove(hex.Axial{})
	}
	if g.Len() != 0 && g.Len() != 1 {
		t.Fatalf("unexpected remaining tiles: %d", g.Len())
	}
	if seen > 19 {
		t.Fatalf("iteration yielded %d tiles from a 19-tile snapshot", seen)
	}
}

func TestGridListenerCoversLaterTiles(t *testing.T) {
	g := NewGrid(WithLogger(quietLogger()))
	var changes int
	id := g.OnOwnerChanged(func(*Tile, int, int) { changes++ })

	late := NewTile(hex.Axial{Q: 3}, Plains)
	_ = g.Add(late)
	late.SetOwner(1)
	if changes != 1 {
		t.Fatalf("grid listener should see tiles added after subscribing")
	}

	g.Remove(late.Coord())
	if late.ListenerCount() != 0 {
		t.Fatalf("removed tile must not keep the grid's forwarder")
	}
	late.SetOwner(2)
	if changes != 1 {
		t.Fatalf("removed tile must not reach grid listeners")
	}

	if !g.RemoveListener(id) || g.RemoveListener(id) {
		t.Fatalf("listener should be removable exactly once")
	}
}

func TestClearDetachesForwarders(t *testing.T) {
	g := diskGrid(t, 1, Plains)
	tiles := make([]*Tile, 0, g.Len())
	for tile := range g.Tiles() {
		tiles = append(tiles, tile)
	}
	g.Clear()
	if g.Len() != 0 {
		t.Fatalf("grid should be empty")
	}
	for _, tile := range tiles {
		if tile.ListenerCount() != 0 {
			t.Fatalf("tile %v still carries a forwarder", tile.Coord())
		}
	}
}

func TestOwnedBy(t *testing.T) {
	g := diskGrid(t, 2, Plains)
	for _, c := range hex.Ring(hex.Axial{}, 1) {
		tile, _ := g.GetTile(c)
		tile.SetOwner(4)
	}
	if n := len(g.OwnedBy(4)); n != 6 {
		t.Fatalf("expected 6 tiles for owner 4, got %d", n)
	}
	if n := len(g.OwnedBy(Unowned)); n != 0 {
		t.Fatalf("neutral is not an owner, got %d tiles", n)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Radius = 6
	cfg.Seed = 42
	a := Generate(cfg, WithLogger(quietLogger()))
	b := Generate(cfg, WithLogger(quietLogger()))

	want := 1 + 3*cfg.Radius*(cfg.Radius+1)
	if a.Len() != want {
		t.Fatalf("expected %d tiles, got %d", want, a.Len())
	}
	for ta := range a.Tiles() {
		tb, ok := b.GetTile(ta.Coord())
		if !ok || ta.Terrain != tb.Terrain || len(ta.Resources()) != len(tb.Resources()) {
			t.Fatalf("maps differ at %v", ta.Coord())
		}
	}
}

func TestFindPath(t *testing.T) {
	g := diskGrid(t, 3, Plains)
	wall, _ := g.GetTile(hex.Axial{Q: 1, R: 0})
	wall.SetTerrain(Mountains)

	route, cost := FindPath(g, hex.Axial{}, hex.Axial{Q: 2, R: 0})
	if len(route) == 0 {
		t.Fatalf("expected a route around the mountain")
	}
	for _, c := range route {
		if c == wall.Coord() {
			t.Fatalf("route crosses impassable tile: %v", route)
		}
	}
	if cost != float64(len(route)-1) {
		t.Fatalf("plains route should cost one per step, got %v for %d steps", cost, len(route)-1)
	}
	if route, _ := FindPath(g, hex.Axial{}, hex.Axial{Q: 9}); route != nil {
		t.Fatalf("missing goal must yield no route")
	}
}

func TestRegeneratorFollowsMode(t *testing.T) {
	g := diskGrid(t, 0, Plains)
	tile, _ := g.GetTile(hex.Axial{})
	tile.AddResource(ResourceFood, Deposit{Amount: 0, Max: 10, RegenPerSecond: 1})

	mode := tick.NewModeFlag(tick.RealTime)
	r := NewRegenerator(g, mode, 10)
	m := tick.NewManager(tick.WithLogger(quietLogger()))
	m.Register(r)
	m.ProcessTick(2 * time.Second)
	if d, _ := tile.Resource(ResourceFood); d.Amount != 2 {
		t.Fatalf("real-time regen = %v, want 2", d.Amount)
	}

	r.OnTurnEnd(1)
	if d, _ := tile.Resource(ResourceFood); d.Amount != 2 {
		t.Fatalf("turn end must not regenerate in real-time mode")
	}

	mode.Set(tick.TurnBased)
	m.ProcessTick(5 * time.Second)
	tm := tick.NewTurnManager(mode, quietLogger())
	tm.AddListener(r)
	if _, err := tm.EndTurn(); err != nil {
		t.Fatalf("end turn: %v", err)
	}
	if d, _ := tile.Resource(ResourceFood); d.Amount != 3 {
		t.Fatalf("turn-based regen = %v, want 3", d.Amount)
	}
}
