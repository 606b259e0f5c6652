package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/gravitas-games/hexrts/internal/config"
	"github.com/gravitas-games/hexrts/internal/game"
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/internal/tick"
	"github.com/gravitas-games/hexrts/pkg/models"
)

const defaultDt = 50 * time.Millisecond

type simOptions struct {
	configFile string
	radius     int
	seed       int64
	players    int
	mode       string
	frames     int
	turns      int
	dt         time.Duration
	builds     int
	dbPath     string
	verbose    bool
}

// config loads the config file, if any, and lets flags given on the command
// line override it.
func (o simOptions) config(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if o.configFile == "" || flags.Changed("radius") {
		cfg.Session.MapRadius = o.radius
	}
	if o.configFile == "" || flags.Changed("seed") {
		cfg.Simulation.Seed = o.seed
	}
	if o.configFile == "" || flags.Changed("mode") {
		cfg.Simulation.Mode = o.mode
	}
	if o.configFile == "" || flags.Changed("players") {
		cfg.Session.MaxPlayers = o.players
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type simResult struct {
	world   *game.World
	owners  []int
	queued  int
	skipped int
}

// simulate builds a world from cfg, settles cfg.Session.MaxPlayers players
// and runs it. The caller closes the returned world.
func simulate(ctx context.Context, cfg *config.Config, opts simOptions, logger *slog.Logger) (*simResult, error) {
	w, err := game.NewWorld(ctx, cfg, game.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	res := &simResult{world: w}

	for owner, spawn := range w.SpawnPoints(cfg.Session.MaxPlayers, cfg.Session.MapRadius) {
		if _, err := w.Claim(owner, spawn, cfg.Session.ClaimRadius); err != nil {
			w.Close()
			return nil, fmt.Errorf("claim spawn %v for owner %d: %w", spawn, owner, err)
		}
		res.owners = append(res.owners, owner)
	}

	for _, owner := range res.owners {
		for i := range opts.builds {
			kind := models.BuildingKind(cfg.Simulation.Blueprints[i%len(cfg.Simulation.Blueprints)].Kind)
			site, ok := freeSite(w, owner)
			if !ok {
				res.skipped++
				continue
			}
			if _, err := w.PlaceBuilding(owner, site, kind); err != nil {
				w.Close()
				return nil, fmt.Errorf("place %s for owner %d: %w", kind, owner, err)
			}
			res.queued++
		}
	}

	if w.Mode.Mode() == tick.TurnBased {
		for range opts.turns {
			if _, err := w.EndTurn(); err != nil {
				w.Close()
				return nil, err
			}
		}
	} else {
		for range opts.frames {
			w.Frame(opts.dt)
		}
	}
	return res, nil
}

// freeSite returns the unoccupied buildable tile owner holds with the
// smallest coordinate, so runs with the same seed place the same sites.
func freeSite(w *game.World, owner int) (hex.Axial, bool) {
	var best hex.Axial
	found := false
	for _, t := range w.Grid.OwnedBy(owner) {
		if !t.Buildable || t.IsOccupied() {
			continue
		}
		c := t.Coord()
		if !found || c.Q < best.Q || (c.Q == best.Q && c.R < best.R) {
			best, found = c, true
		}
	}
	return best, found
}
