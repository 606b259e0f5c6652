package gamemap

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/gravitas-games/hexrts/internal/hex"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Radius        int     // Hex radius of the map around the origin
	Seed          int64   // Random seed (0 = random)
	SeaLevel      float64 // Elevation threshold for water (0.0–1.0)
	MountainLevel float64 // Elevation threshold for mountains (0.0–1.0)
	// RegenScale multiplies the default regeneration rates; 0 disables regeneration.
	RegenScale float64
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:        12,
		Seed:          0,
		SeaLevel:      0.3,
		MountainLevel: 0.75,
		RegenScale:    1,
	}
}

// Generate creates a disk-shaped grid with terrain and resources derived from
// layered simplex noise. The same seed always yields the same map.
func Generate(cfg GenConfig, opts ...Option) *Grid {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	g := NewGrid(opts...)
	for _, c := range hex.Disk(hex.Axial{}, cfg.Radius) {
		p := hex.AxialToWorld(c)
		elev := octaveNoise(elevNoise, p.X, p.Y, 4, 0.08, 0.5)
		moist := octaveNoise(moistNoise, p.X, p.Y, 3, 0.06, 0.5)
		temp := octaveNoise(tempNoise, p.X, p.Y, 3, 0.05, 0.5)

		t := NewTile(c, classify(cfg, elev, moist, temp))
		seedResources(t, hex.HashCoord(seed, c), cfg.RegenScale)
		// Disk never yields duplicates.
		_ = g.Add(t)
	}
	g.logger.Info("map generated", "radius", cfg.Radius, "seed", seed, "tiles", g.Len())
	return g
}

// classify maps noise samples to a terrain type.
func classify(cfg GenConfig, elev, moist, temp float64) TerrainType {
	switch {
	case elev < cfg.SeaLevel*0.6:
		return DeepWater
	case elev < cfg.SeaLevel:
		return Water
	case elev > cfg.MountainLevel:
		if temp < 0.3 {
			return Snow
		}
		return Mountains
	case elev > cfg.MountainLevel-0.1:
		return Hills
	case temp < 0.2:
		return Snow
	case temp < 0.32:
		return Tundra
	case moist > 0.72 && elev < cfg.SeaLevel+0.08:
		return Swamp
	case moist < 0.28 && temp > 0.6:
		return Desert
	case moist > 0.55:
		return Forest
	case moist > 0.42:
		return Grassland
	default:
		return Plains
	}
}

// seedResources places the terrain's deposits. h picks the rare ones.
func seedResources(t *Tile, h uint64, regenScale float64) {
	roll := float64(h%1000) / 1000
	add := func(rt ResourceType, amount, regen float64) {
		t.AddResource(rt, Deposit{Amount: amount, Max: amount, RegenPerSecond: regen * regenScale})
	}
	switch t.Terrain {
	case Grassland:
		add(ResourceFood, 120, 0.5)
	case Plains:
		add(ResourceFood, 80, 0.4)
	case Forest:
		add(ResourceWood, 150, 0.2)
		add(ResourceFood, 30, 0.1)
	case Hills:
		add(ResourceStone, 200, 0)
		if roll < 0.3 {
			add(ResourceIron, 100, 0)
		}
	case Mountains:
		add(ResourceStone, 300, 0)
		add(ResourceIron, 150, 0)
		if roll < 0.1 {
			add(ResourceGold, 60, 0)
		}
	case Desert:
		if roll < 0.05 {
			add(ResourceGold, 40, 0)
		}
	case Water:
		add(ResourceFood, 60, 0.3)
	case Swamp, Tundra:
		add(ResourceFood, 20, 0.05)
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxValue := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxValue
}
