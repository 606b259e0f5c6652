package models

import "time"

// BuildingKind names a building blueprint, e.g. "farm".
type BuildingKind string

// BuildingState tracks a building through construction.
type BuildingState int

const (
	BuildingPlanned BuildingState = iota
	BuildingUnderConstruction
	BuildingComplete
	BuildingDestroyed
)

// String returns a human-readable representation of the building state.
func (s BuildingState) String() string {
	switch s {
	case BuildingPlanned:
		return "Planned"
	case BuildingUnderConstruction:
		return "UnderConstruction"
	case BuildingComplete:
		return "Complete"
	case BuildingDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// Blueprint is the construction cost of a building kind under both clocks.
type Blueprint struct {
	Kind      BuildingKind  `json:"kind" yaml:"kind"`
	BuildTime time.Duration `json:"build_time" yaml:"build_time"`
	// BuildTurns is the cost in turns when the game runs turn-based.
	BuildTurns int `json:"build_turns" yaml:"build_turns"`
}

// Building is a placed structure. Tiles only reference it; its lifetime is
// owned by whoever created it.
type Building struct {
	ID      string        `json:"id"`
	Kind    BuildingKind  `json:"kind"`
	OwnerID int           `json:"owner_id"`
	Q       int           `json:"q"`
	R       int           `json:"r"`
	State   BuildingState `json:"state"`

	Blueprint Blueprint `json:"blueprint"`
}

// Destroyed reports whether the building has been torn down.
func (b *Building) Destroyed() bool {
	return b == nil || b.State == BuildingDestroyed
}

// Complete reports whether construction has finished.
func (b *Building) Complete() bool {
	return b != nil && b.State == BuildingComplete
}

// Destroy marks the building as gone.
func (b *Building) Destroy() {
	b.State = BuildingDestroyed
}
