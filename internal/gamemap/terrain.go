package gamemap

import (
	"fmt"
	"strings"
)

// TerrainType classifies a tile's ground.
type TerrainType uint8

const (
	Grassland TerrainType = iota
	Plains
	Desert
	Water
	DeepWater
	Forest
	Hills
	Mountains
	Swamp
	Tundra
	Snow
)

var terrainNames = [...]string{
	Grassland: "grassland",
	Plains:    "plains",
	Desert:    "desert",
	Water:     "water",
	DeepWater: "deep_water",
	Forest:    "forest",
	Hills:     "hills",
	Mountains: "mountains",
	Swamp:     "swamp",
	Tundra:    "tundra",
	Snow:      "snow",
}

// String returns the terrain's snake_case name.
func (t TerrainType) String() string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "unknown"
}

// ParseTerrain is the inverse of String.
func ParseTerrain(s string) (TerrainType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range terrainNames {
		if name == s {
			return TerrainType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown terrain %q", s)
}

// TerrainTraits are the defaults a tile takes from its terrain.
type TerrainTraits struct {
	MovementCost float64
	DefenseBonus int
	Passable     bool
	Buildable    bool
}

var terrainTraits = [...]TerrainTraits{
	Grassland: {MovementCost: 1, DefenseBonus: 0, Passable: true, Buildable: true},
	Plains:    {MovementCost: 1, DefenseBonus: 0, Passable: true, Buildable: true},
	Desert:    {MovementCost: 1.5, DefenseBonus: -1, Passable: true, Buildable: true},
	Water:     {MovementCost: 0, DefenseBonus: 0, Passable: false, Buildable: false},
	DeepWater: {MovementCost: 0, DefenseBonus: 0, Passable: false, Buildable: false},
	Forest:    {MovementCost: 2, DefenseBonus: 1, Passable: true, Buildable: true},
	Hills:     {MovementCost: 2, DefenseBonus: 2, Passable: true, Buildable: true},
	Mountains: {MovementCost: 3, DefenseBonus: 3, Passable: false, Buildable: false},
	Swamp:     {MovementCost: 2.5, DefenseBonus: -1, Passable: true, Buildable: false},
	Tundra:    {MovementCost: 1.5, DefenseBonus: 0, Passable: true, Buildable: true},
	Snow:      {MovementCost: 2, DefenseBonus: 0, Passable: true, Buildable: false},
}

// Traits returns the default traits of t. Unknown terrain is impassable.
func (t TerrainType) Traits() TerrainTraits {
	if int(t) < len(terrainTraits) {
		return terrainTraits[t]
	}
	return TerrainTraits{}
}

// IsWater reports whether t is open or deep water.
func (t TerrainType) IsWater() bool {
	return t == Water || t == DeepWater
}
