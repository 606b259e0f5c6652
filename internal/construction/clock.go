package construction

import (
	"time"

	"github.com/gravitas-games/hexrts/internal/tick"
)

// ClockKind says which clock measures a job.
type ClockKind int

const (
	RealTimeClock ClockKind = iota
	TurnClock
)

// String returns a human-readable representation of the clock kind.
func (k ClockKind) String() string {
	switch k {
	case RealTimeClock:
		return "realtime"
	case TurnClock:
		return "turns"
	default:
		return "unknown"
	}
}

// ProgressClock is either a time budget or a turn budget. The kind is fixed
// when the clock is created; the other budget is never consulted.
type ProgressClock struct {
	kind ClockKind

	remaining time.Duration
	total     time.Duration

	turnsRemaining int
	totalTurns     int
}

// RealTime returns a clock that completes after total of frame time.
func RealTime(total time.Duration) ProgressClock {
	return ProgressClock{kind: RealTimeClock, remaining: total, total: total}
}

// Turns returns a clock that completes after total turn ends.
func Turns(total int) ProgressClock {
	return ProgressClock{kind: TurnClock, turnsRemaining: total, totalTurns: total}
}

// ClockFor picks the clock matching mode.
func ClockFor(mode tick.Mode, buildTime time.Duration, buildTurns int) ProgressClock {
	if mode == tick.TurnBased {
		return Turns(buildTurns)
	}
	return RealTime(buildTime)
}

// Kind returns the clock kind.
func (c ProgressClock) Kind() ClockKind { return c.kind }

// Remaining returns the time left on a real-time clock.
func (c ProgressClock) Remaining() time.Duration { return c.remaining }

// Total returns the time budget of a real-time clock.
func (c ProgressClock) Total() time.Duration { return c.total }

// TurnsRemaining returns the turns left on a turn clock.
func (c ProgressClock) TurnsRemaining() int { return c.turnsRemaining }

// TotalTurns returns the turn budget of a turn clock.
func (c ProgressClock) TotalTurns() int { return c.totalTurns }

// Progress returns completion in [0,1]. A zero or negative budget counts as
// already complete.
func (c ProgressClock) Progress() float64 {
	var p float64
	switch c.kind {
	case TurnClock:
		if c.totalTurns <= 0 {
			return 1
		}
		p = 1 - float64(c.turnsRemaining)/float64(c.totalTurns)
	default:
		if c.total <= 0 {
			return 1
		}
		p = 1 - float64(c.remaining)/float64(c.total)
	}
	return min(1, max(0, p))
}

// Complete reports whether the remaining budget is used up.
func (c ProgressClock) Complete() bool {
	if c.kind == TurnClock {
		return c.turnsRemaining <= 0
	}
	return c.remaining <= 0
}

// Advance consumes dt from a real-time clock. Turn clocks ignore it.
func (c *ProgressClock) Advance(dt time.Duration) {
	if c.kind == RealTimeClock && dt > 0 && c.remaining > 0 {
		c.remaining = max(0, c.remaining-dt)
	}
}

// AdvanceTurn consumes one turn from a turn clock. Real-time clocks ignore it.
func (c *ProgressClock) AdvanceTurn() {
	if c.kind == TurnClock && c.turnsRemaining > 0 {
		c.turnsRemaining--
	}
}

// ClockState is the stored form of a ProgressClock.
type ClockState struct {
	Kind           ClockKind     `json:"kind"`
	Remaining      time.Duration `json:"remaining,omitempty"`
	Total          time.Duration `json:"total,omitempty"`
	TurnsRemaining int           `json:"turns_remaining,omitempty"`
	TotalTurns     int           `json:"total_turns,omitempty"`
}

// State returns the clock in stored form.
func (c ProgressClock) State() ClockState {
	return ClockState{
		Kind:           c.kind,
		Remaining:      c.remaining,
		Total:          c.total,
		TurnsRemaining: c.turnsRemaining,
		TotalTurns:     c.totalTurns,
	}
}

// Clock rebuilds the clock. Remaining budgets are clamped to the totals.
func (s ClockState) Clock() ProgressClock {
	if s.Kind == TurnClock {
		return ProgressClock{
			kind:           TurnClock,
			turnsRemaining: min(max(s.TurnsRemaining, 0), max(s.TotalTurns, 0)),
			totalTurns:     s.TotalTurns,
		}
	}
	return ProgressClock{
		kind:      RealTimeClock,
		remaining: min(max(s.Remaining, 0), max(s.Total, 0)),
		total:     s.Total,
	}
}
