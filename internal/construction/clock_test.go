package construction

import (
	"testing"
	"time"

	"github.com/gravitas-games/hexrts/internal/tick"
)

func TestZeroBudgetIsComplete(t *testing.T) {
	for _, c := range []ProgressClock{RealTime(0), Turns(0), RealTime(-time.Second), Turns(-2)} {
		if c.Progress() != 1 {
			t.Errorf("%s clock with empty budget: progress %v, want 1", c.Kind(), c.Progress())
		}
		if !c.Complete() {
			t.Errorf("%s clock with empty budget should be complete", c.Kind())
		}
	}
}

func TestRealTimeClockProgress(t *testing.T) {
	c := RealTime(4 * time.Second)
	c.Advance(time.Second)
	if got := c.Progress(); got != 0.25 {
		t.Fatalf("progress = %v, want 0.25", got)
	}
	c.AdvanceTurn()
	if c.Remaining() != 3*time.Second {
		t.Fatalf("turns must not move a real-time clock")
	}
	c.Advance(-time.Second)
	c.Advance(10 * time.Second)
	if !c.Complete() || c.Remaining() != 0 || c.Progress() != 1 {
		t.Fatalf("overshoot should clamp to complete: remaining=%v", c.Remaining())
	}
}

func TestTurnClockProgress(t *testing.T) {
	c := Turns(4)
	c.Advance(time.Hour)
	if c.TurnsRemaining() != 4 {
		t.Fatalf("frame time must not move a turn clock")
	}
	c.AdvanceTurn()
	if got := c.Progress(); got != 0.25 {
		t.Fatalf("progress = %v, want 0.25", got)
	}
	for range 5 {
		c.AdvanceTurn()
	}
	if !c.Complete() || c.TurnsRemaining() != 0 {
		t.Fatalf("turn clock should stop at zero, got %d", c.TurnsRemaining())
	}
}

func TestClockForMode(t *testing.T) {
	if k := ClockFor(tick.RealTime, time.Second, 3).Kind(); k != RealTimeClock {
		t.Errorf("real-time mode picked %s", k)
	}
	c := ClockFor(tick.TurnBased, time.Second, 3)
	if c.Kind() != TurnClock || c.TotalTurns() != 3 {
		t.Errorf("turn-based mode picked %s with %d turns", c.Kind(), c.TotalTurns())
	}
}
