package tick

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// ErrNotTurnBased is returned by EndTurn while the game runs in real time.
var ErrNotTurnBased = errors.New("turn ended outside turn-based mode")

// TurnListener receives turn boundary events.
type TurnListener interface {
	OnTurnStart(turn int)
	OnTurnEnd(turn int)
}

// TurnManager is the turn boundary event source. Turns are numbered from 1.
type TurnManager struct {
	mode      ModeSource
	turn      int
	listeners []TurnListener
	logger    *slog.Logger
}

// NewTurnManager creates a manager at turn 1. A nil mode source means the
// game is always turn-based.
func NewTurnManager(mode ModeSource, logger *slog.Logger) *TurnManager {
	if mode == nil {
		mode = Fixed(TurnBased)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnManager{mode: mode, turn: 1, logger: logger}
}

// Turn returns the current turn number.
func (tm *TurnManager) Turn() int { return tm.turn }

// AddListener registers l. Duplicates and nil are ignored. A listener added
// during an event is first called on the next event.
func (tm *TurnManager) AddListener(l TurnListener) {
	if l == nil || slices.Contains(tm.listeners, l) {
		return
	}
	tm.listeners = append(slices.Clip(tm.listeners), l)
}

// RemoveListener unregisters l.
func (tm *TurnManager) RemoveListener(l TurnListener) {
	i := slices.Index(tm.listeners, l)
	if i < 0 {
		return
	}
	out := make([]TurnListener, 0, len(tm.listeners)-1)
	out = append(out, tm.listeners[:i]...)
	tm.listeners = append(out, tm.listeners[i+1:]...)
}

// EndTurn fires OnTurnEnd for the current turn on every listener, advances
// the counter, then fires OnTurnStart for the new turn. It returns the new
// turn number.
func (tm *TurnManager) EndTurn() (int, error) {
	if tm.mode.Mode() != TurnBased {
		return tm.turn, ErrNotTurnBased
	}
	ending := tm.turn
	for _, l := range tm.listeners {
		tm.call(l, func() { l.OnTurnEnd(ending) })
	}
	tm.turn++
	started := tm.turn
	for _, l := range tm.listeners {
		tm.call(l, func() { l.OnTurnStart(started) })
	}
	tm.logger.Debug("turn advanced", "ended", ending, "started", started)
	return started, nil
}

func (tm *TurnManager) call(l TurnListener, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			tm.logger.Error("turn listener faulted", "listener", fmt.Sprintf("%T", l), "turn", tm.turn, "panic", r)
		}
	}()
	fn()
}
