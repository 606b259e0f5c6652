package gamemap

import (
	"log/slog"
	"slices"
)

// ListenerID identifies a registered ownership listener so it can be removed.
type ListenerID uint64

// OwnerChangedFunc receives a tile whose owner changed from previous to current.
type OwnerChangedFunc func(t *Tile, previous, current int)

type ownerListener struct {
	id ListenerID
	fn OwnerChangedFunc
}

// ownerListeners is a copy-on-write list, so listeners may add or remove
// registrations while a notification is running; changes apply to the next one.
type ownerListeners struct {
	next    ListenerID
	entries []ownerListener
}

func (l *ownerListeners) add(fn OwnerChangedFunc) ListenerID {
	l.next++
	l.entries = append(slices.Clip(l.entries), ownerListener{id: l.next, fn: fn})
	return l.next
}

func (l *ownerListeners) remove(id ListenerID) bool {
	i := slices.IndexFunc(l.entries, func(e ownerListener) bool { return e.id == id })
	if i < 0 {
		return false
	}
	out := make([]ownerListener, 0, len(l.entries)-1)
	out = append(out, l.entries[:i]...)
	l.entries = append(out, l.entries[i+1:]...)
	return true
}

func (l *ownerListeners) len() int { return len(l.entries) }

func (l *ownerListeners) notify(logger *slog.Logger, t *Tile, previous, current int) {
	for _, e := range l.entries {
		callListener(logger, e, t, previous, current)
	}
}

func callListener(logger *slog.Logger, e ownerListener, t *Tile, previous, current int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ownership listener panicked",
				"listener", e.id, "tile", t.coord, "previous", previous, "current", current, "panic", r)
		}
	}()
	e.fn(t, previous, current)
}
