package gamemap

import (
	"log/slog"

	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/pkg/models"
)

// Unowned is the owner id of neutral tiles. Every negative id means neutral.
const Unowned = -1

// Tile is a single hex cell of the map.
type Tile struct {
	coord hex.Axial

	Terrain      TerrainType
	MovementCost float64 // >= 0
	DefenseBonus int
	Passable     bool
	Buildable    bool

	owner     int
	resources map[ResourceType]*Deposit
	occupant  *models.Building

	listeners ownerListeners
	logger    *slog.Logger
}

// NewTile creates a neutral tile with the traits of its terrain.
func NewTile(coord hex.Axial, terrain TerrainType) *Tile {
	t := &Tile{
		coord:     coord,
		owner:     Unowned,
		resources: make(map[ResourceType]*Deposit),
		logger:    slog.Default(),
	}
	t.SetTerrain(terrain)
	return t
}

// Coord returns the tile's axial coordinate. It never changes.
func (t *Tile) Coord() hex.Axial { return t.coord }

// SetTerrain changes the terrain and resets movement, defense and flags to
// the terrain defaults.
func (t *Tile) SetTerrain(terrain TerrainType) {
	tr := terrain.Traits()
	t.Terrain = terrain
	t.MovementCost = max(0, tr.MovementCost)
	t.DefenseBonus = tr.DefenseBonus
	t.Passable = tr.Passable
	t.Buildable = tr.Buildable
}

// Owner returns the owner id, or Unowned.
func (t *Tile) Owner() int { return t.owner }

// IsOwned reports whether any player owns the tile.
func (t *Tile) IsOwned() bool { return t.owner >= 0 }

// OwnedBy reports whether owner holds the tile. Always false for neutral ids.
func (t *Tile) OwnedBy(owner int) bool { return owner >= 0 && t.owner == owner }

// SetOwner assigns the tile and synchronously notifies listeners with the
// previous and new owner before returning. Negative ids are stored as
// Unowned. Setting the current owner again does nothing.
func (t *Tile) SetOwner(owner int) {
	if owner < 0 {
		owner = Unowned
	}
	if owner == t.owner {
		return
	}
	previous := t.owner
	t.owner = owner
	t.listeners.notify(t.logger, t, previous, owner)
}

// OnOwnerChanged registers fn for this tile's ownership changes.
func (t *Tile) OnOwnerChanged(fn OwnerChangedFunc) ListenerID {
	if fn == nil {
		return 0
	}
	return t.listeners.add(fn)
}

// RemoveListener unregisters a listener added with OnOwnerChanged.
func (t *Tile) RemoveListener(id ListenerID) bool {
	return t.listeners.remove(id)
}

// ListenerCount returns the number of registered ownership listeners.
func (t *Tile) ListenerCount() int { return t.listeners.len() }

// OccupyingBuilding returns the building on this tile. A building that has
// been destroyed elsewhere reads as absent and the relation is dropped.
func (t *Tile) OccupyingBuilding() *models.Building {
	if t.occupant != nil && t.occupant.Destroyed() {
		t.occupant = nil
	}
	return t.occupant
}

// IsOccupied reports whether a live building stands on the tile.
func (t *Tile) IsOccupied() bool { return t.OccupyingBuilding() != nil }

// SetOccupyingBuilding links b to the tile. Nil or destroyed buildings are
// ignored and false is returned.
func (t *Tile) SetOccupyingBuilding(b *models.Building) bool {
	if b.Destroyed() {
		return false
	}
	t.occupant = b
	return true
}

// ClearOccupyingBuilding drops the building relation.
func (t *Tile) ClearOccupyingBuilding() { t.occupant = nil }

// AddResource sets the deposit for rt, replacing any previous one.
// Negative values are clamped to zero and Amount never exceeds Max.
func (t *Tile) AddResource(rt ResourceType, d Deposit) {
	d.Max = max(0, d.Max)
	d.Amount = min(max(0, d.Amount), d.Max)
	d.RegenPerSecond = max(0, d.RegenPerSecond)
	t.resources[rt] = &d
}

// RemoveResource deletes the deposit for rt.
func (t *Tile) RemoveResource(rt ResourceType) bool {
	if _, ok := t.resources[rt]; !ok {
		return false
	}
	delete(t.resources, rt)
	return true
}

// Resource returns a copy of the deposit for rt.
func (t *Tile) Resource(rt ResourceType) (Deposit, bool) {
	d, ok := t.resources[rt]
	if !ok {
		return Deposit{}, false
	}
	return *d, true
}

// Resources returns a copy of every deposit on the tile.
func (t *Tile) Resources() map[ResourceType]Deposit {
	out := make(map[ResourceType]Deposit, len(t.resources))
	for rt, d := range t.resources {
		out[rt] = *d
	}
	return out
}

// HasResources reports whether the tile carries any deposit.
func (t *Tile) HasResources() bool { return len(t.resources) > 0 }

// Harvest removes up to amount of rt and returns what was taken.
func (t *Tile) Harvest(rt ResourceType, amount float64) float64 {
	d, ok := t.resources[rt]
	if !ok || amount <= 0 {
		return 0
	}
	taken := min(amount, d.Amount)
	d.Amount -= taken
	return taken
}

// Regenerate advances every deposit by seconds of regeneration and returns
// how many deposits changed.
func (t *Tile) Regenerate(seconds float64) int {
	n := 0
	for _, d := range t.resources {
		if d.regenerate(seconds) {
			n++
		}
	}
	return n
}

// RestoreResources replaces all deposits; used by loaders.
func (t *Tile) RestoreResources(in map[ResourceType]Deposit) {
	t.resources = make(map[ResourceType]*Deposit, len(in))
	for rt, d := range in {
		t.AddResource(rt, d)
	}
}
