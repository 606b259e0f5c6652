package gamemap

import (
	"fmt"
	"strings"
)

// ResourceType enumerates harvestable tile resources.
type ResourceType uint8

const (
	ResourceFood ResourceType = iota
	ResourceWood
	ResourceStone
	ResourceIron
	ResourceGold
)

var resourceNames = [...]string{
	ResourceFood:  "food",
	ResourceWood:  "wood",
	ResourceStone: "stone",
	ResourceIron:  "iron",
	ResourceGold:  "gold",
}

// String returns the resource name.
func (r ResourceType) String() string {
	if int(r) < len(resourceNames) {
		return resourceNames[r]
	}
	return "unknown"
}

// ParseResource is the inverse of String.
func ParseResource(s string) (ResourceType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range resourceNames {
		if name == s {
			return ResourceType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resource %q", s)
}

// Deposit is the amount of one resource held by a tile.
type Deposit struct {
	Amount float64 `json:"amount"`
	Max    float64 `json:"max"`
	// RegenPerSecond is added per second of real time, or per turn when
	// regeneration is driven by turn ends.
	RegenPerSecond float64 `json:"regen_per_second"`
}

// regenerate tops the deposit up by rate*seconds without exceeding Max.
func (d *Deposit) regenerate(seconds float64) bool {
	if d.RegenPerSecond <= 0 || d.Amount >= d.Max || seconds <= 0 {
		return false
	}
	d.Amount = min(d.Max, d.Amount+d.RegenPerSecond*seconds)
	return true
}
