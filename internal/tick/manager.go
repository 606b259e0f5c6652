// Package tick drives per-frame and per-turn updates of registered systems in
// a deterministic priority order.
package tick

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"sort"
	"time"
)

// PriorityEndOfFrame sorts after every ordinary tickable. Work that must see
// the frame's final state, such as border recomputation, registers with it.
const PriorityEndOfFrame = math.MaxInt32

// Tickable is a unit of work dispatched once per tick. Implementations must
// be comparable; pointer receivers are.
type Tickable interface {
	// TickPriority orders dispatch, ascending. It is read when the manager
	// resorts, so call MarkDirty after changing it.
	TickPriority() int
	// IsTickActive is checked every tick; inactive tickables are skipped.
	IsTickActive() bool
	Tick(dt time.Duration)
}

// Stats describes the manager's activity.
type Stats struct {
	Ticks      uint64 // completed ProcessTick passes
	Dispatched uint64 // Tick calls made
	Faults     uint64 // Tick calls that panicked
}

// Manager dispatches registered tickables.
//
// Register and Unregister may be called from inside a Tick: the change is
// queued and applied once the current pass ends. The manager is not safe for
// concurrent use; drive it from one goroutine.
type Manager struct {
	active  []Tickable
	present map[Tickable]struct{}
	dirty   bool

	dispatching   bool
	pendingAdd    []Tickable
	pendingRemove []Tickable

	stats  Stats
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used to report tickable faults.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates an idle manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		present: make(map[Tickable]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds t. Nil tickables, including nil pointers wrapped in the
// interface, and already registered ones are ignored.
func (m *Manager) Register(t Tickable) {
	if isNil(t) {
		return
	}
	if m.dispatching {
		m.pendingRemove = deleteItem(m.pendingRemove, t)
		if !slices.Contains(m.pendingAdd, t) {
			m.pendingAdd = append(m.pendingAdd, t)
		}
		return
	}
	m.add(t)
}

// Unregister removes t. Nil and unknown tickables are ignored.
func (m *Manager) Unregister(t Tickable) {
	if isNil(t) {
		return
	}
	if m.dispatching {
		m.pendingAdd = deleteItem(m.pendingAdd, t)
		if !slices.Contains(m.pendingRemove, t) {
			m.pendingRemove = append(m.pendingRemove, t)
		}
		return
	}
	m.remove(t)
}

func isNil(t Tickable) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// IsRegistered reports whether t is in the active list. Queued changes are
// not reflected until the current pass ends.
func (m *Manager) IsRegistered(t Tickable) bool {
	if t == nil {
		return false
	}
	_, ok := m.present[t]
	return ok
}

// Len returns the number of active tickables.
func (m *Manager) Len() int { return len(m.active) }

// Dispatching reports whether a pass is in progress.
func (m *Manager) Dispatching() bool { return m.dispatching }

// MarkDirty forces a resort before the next pass.
func (m *Manager) MarkDirty() { m.dirty = true }

// Stats returns activity counters.
func (m *Manager) Stats() Stats { return m.stats }

// ProcessTick runs one pass over every active tickable in ascending priority.
// Equal priorities keep registration order. A panicking Tick is recovered and
// logged and the pass continues; the tickable stays registered. Calls with
// dt <= 0, and nested calls from inside a Tick, do nothing.
func (m *Manager) ProcessTick(dt time.Duration) {
	if dt <= 0 {
		return
	}
	if m.dispatching {
		m.logger.Warn("nested ProcessTick ignored")
		return
	}
	if m.dirty {
		sort.SliceStable(m.active, func(i, j int) bool {
			return m.active[i].TickPriority() < m.active[j].TickPriority()
		})
		m.dirty = false
	}

	m.dispatching = true
	for _, t := range m.active {
		m.dispatch(t, dt)
	}
	m.dispatching = false
	m.stats.Ticks++

	m.applyPending()
}

func (m *Manager) dispatch(t Tickable, dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			m.stats.Faults++
			m.logger.Error("tickable faulted",
				"tickable", fmt.Sprintf("%T", t), "panic", r)
		}
	}()
	if !t.IsTickActive() {
		return
	}
	m.stats.Dispatched++
	t.Tick(dt)
}

func (m *Manager) applyPending() {
	adds, removes := m.pendingAdd, m.pendingRemove
	m.pendingAdd, m.pendingRemove = nil, nil
	for _, t := range adds {
		m.add(t)
	}
	for _, t := range removes {
		m.remove(t)
	}
}

func (m *Manager) add(t Tickable) {
	if _, ok := m.present[t]; ok {
		return
	}
	m.present[t] = struct{}{}
	m.active = append(m.active, t)
	m.dirty = true
}

// remove keeps the relative order of the rest, so no resort is needed.
func (m *Manager) remove(t Tickable) {
	if _, ok := m.present[t]; !ok {
		return
	}
	delete(m.present, t)
	m.active = deleteItem(m.active, t)
}

func deleteItem(s []Tickable, t Tickable) []Tickable {
	if i := slices.Index(s, t); i >= 0 {
		return slices.Delete(s, i, i+1)
	}
	return s
}
