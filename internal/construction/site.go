package construction

import (
	"errors"
	"fmt"

	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/pkg/models"
)

var (
	// ErrNoTile is returned when the build site has no tile.
	ErrNoTile = errors.New("no tile at build site")
	// ErrNotBuildable is returned for terrain that cannot hold buildings.
	ErrNotBuildable = errors.New("terrain is not buildable")
	// ErrNotOwner is returned when the builder does not own the site.
	ErrNotOwner = errors.New("site not owned by builder")
	// ErrOccupied is returned when a live building already stands on the site.
	ErrOccupied = errors.New("site is occupied")
)

// CheckSite reports why b cannot be placed on t, or nil if it can.
func CheckSite(t *gamemap.Tile, b *models.Building) error {
	switch {
	case b == nil:
		return ErrNilBuilding
	case t == nil:
		return ErrNoTile
	case !t.Buildable:
		return fmt.Errorf("%w: %s at %v", ErrNotBuildable, t.Terrain, t.Coord())
	case !t.OwnedBy(b.OwnerID):
		return fmt.Errorf("%w: tile %v belongs to %d", ErrNotOwner, t.Coord(), t.Owner())
	case t.IsOccupied():
		return fmt.Errorf("%w: %v", ErrOccupied, t.Coord())
	}
	return nil
}

// Place validates the site and links b to t, stamping b with the tile's
// coordinates.
func Place(t *gamemap.Tile, b *models.Building) error {
	if err := CheckSite(t, b); err != nil {
		return err
	}
	c := t.Coord()
	b.Q, b.R = c.Q, c.R
	if !t.SetOccupyingBuilding(b) {
		return ErrAlreadyBuilt
	}
	return nil
}
