package gamemap

import (
	"time"

	"github.com/gravitas-games/hexrts/internal/tick"
)

// Regenerator tops up tile deposits. It runs as a tickable in real-time mode
// and as a turn listener in turn-based mode, where one turn counts as one
// second of regeneration.
type Regenerator struct {
	grid     *Grid
	mode     tick.ModeSource
	priority int

	// Regenerated counts deposit updates, for diagnostics.
	Regenerated int
}

// NewRegenerator creates a regenerator over g.
func NewRegenerator(g *Grid, mode tick.ModeSource, priority int) *Regenerator {
	return &Regenerator{grid: g, mode: mode, priority: priority}
}

// TickPriority implements tick.Tickable.
func (r *Regenerator) TickPriority() int { return r.priority }

// IsTickActive implements tick.Tickable.
func (r *Regenerator) IsTickActive() bool { return r.mode.Mode() == tick.RealTime }

// Tick implements tick.Tickable.
func (r *Regenerator) Tick(dt time.Duration) { r.apply(dt.Seconds()) }

// OnTurnStart implements tick.TurnListener.
func (r *Regenerator) OnTurnStart(int) {}

// OnTurnEnd implements tick.TurnListener.
func (r *Regenerator) OnTurnEnd(int) {
	if r.mode.Mode() == tick.TurnBased {
		r.apply(1)
	}
}

func (r *Regenerator) apply(seconds float64) {
	for t := range r.grid.Tiles() {
		r.Regenerated += t.Regenerate(seconds)
	}
}
