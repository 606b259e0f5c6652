package territory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/internal/tick"
)

var (
	// ErrNilGrid is returned when a coordinator is built without a grid.
	ErrNilGrid = errors.New("territory: nil grid")
	// ErrGridNotReady is returned when the grid stays empty past the wait timeout.
	ErrGridNotReady = errors.New("territory: grid has no tiles")
)

const (
	defaultWaitTimeout  = 5 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// EventKind says how a tracked border changed.
type EventKind int

const (
	BorderCreated EventKind = iota
	BorderUpdated
	BorderRemoved
)

// String returns a human-readable representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case BorderCreated:
		return "created"
	case BorderUpdated:
		return "updated"
	case BorderRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// BorderEvent reports a border transition. Border is a copy; for removals it
// holds the last tracked state.
type BorderEvent struct {
	Kind   EventKind
	Border Border
}

// ObserverID identifies a border observer.
type ObserverID uint64

type observer struct {
	id ObserverID
	fn func(BorderEvent)
}

// Stats describes coordinator activity.
type Stats struct {
	Flushes        uint64
	Recomputations uint64
	Tracked        int
	Pending        int
	Pool           PoolStats
}

// Coordinator keeps the set of tile borders in step with ownership. Ownership
// changes only queue work: the tile and its six neighbours go into a pending
// set, and Flush recomputes each queued coordinate once. Registered with a
// tick.Manager it flushes at the end of every frame that queued something.
type Coordinator struct {
	grid       *gamemap.Grid
	listenerID gamemap.ListenerID
	started    bool

	pending map[hex.Axial]struct{}
	borders map[hex.Axial]*Border
	pool    borderPool

	observers  []observer
	nextObsID  ObserverID
	flushes    uint64
	recomputes uint64

	waitTimeout  time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWaitTimeout bounds how long Start waits for the grid to be populated.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.waitTimeout = d
		}
	}
}

// WithPollInterval sets how often Start checks the grid while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewCoordinator creates a coordinator over g. It tracks nothing until Start.
func NewCoordinator(g *gamemap.Grid, opts ...Option) (*Coordinator, error) {
	if g == nil {
		return nil, ErrNilGrid
	}
	c := &Coordinator{
		grid:         g,
		pending:      make(map[hex.Axial]struct{}),
		borders:      make(map[hex.Axial]*Border),
		waitTimeout:  defaultWaitTimeout,
		pollInterval: defaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start waits for the grid to hold tiles, subscribes to ownership changes and
// builds the initial borders. It fails with ErrGridNotReady when the grid is
// still empty after the wait timeout; the coordinator then stays inert.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.started {
		return nil
	}
	if err := WaitForTiles(ctx, c.grid, c.pollInterval, c.waitTimeout); err != nil {
		return err
	}
	c.listenerID = c.grid.OnOwnerChanged(c.onOwnerChanged)
	c.started = true
	for t := range c.grid.Tiles() {
		if t.IsOwned() {
			c.pending[t.Coord()] = struct{}{}
		}
	}
	n := c.Flush()
	c.logger.Info("territory borders started", "tiles", c.grid.Len(), "initial", n, "borders", len(c.borders))
	return nil
}

// WaitForTiles polls g until it holds at least one tile, ctx ends, or timeout
// elapses.
func WaitForTiles(ctx context.Context, g *gamemap.Grid, poll, timeout time.Duration) error {
	if g.Len() > 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrGridNotReady, ctx.Err())
		case <-ticker.C:
			if g.Len() > 0 {
				return nil
			}
		}
	}
}

// Close unsubscribes from the grid and returns every border handle to the
// pool without emitting events.
func (c *Coordinator) Close() {
	if c.started {
		c.grid.RemoveListener(c.listenerID)
		c.started = false
	}
	for coord, b := range c.borders {
		c.pool.release(b)
		delete(c.borders, coord)
	}
	clear(c.pending)
}

// Started reports whether the coordinator is tracking the grid.
func (c *Coordinator) Started() bool { return c.started }

func (c *Coordinator) onOwnerChanged(t *gamemap.Tile, _, _ int) {
	c.Invalidate(t.Coord())
}

// Invalidate queues coord and its neighbours for recomputation. Use it for
// changes that do not go through SetOwner, such as removing a tile.
func (c *Coordinator) Invalidate(coord hex.Axial) {
	c.pending[coord] = struct{}{}
	for _, n := range coord.Neighbors() {
		c.pending[n] = struct{}{}
	}
}

// Pending returns the number of queued coordinates.
func (c *Coordinator) Pending() int { return len(c.pending) }

// Flush recomputes every queued coordinate once and returns how many were
// processed. Ownership changes made by observers during a flush are queued
// for the next one.
func (c *Coordinator) Flush() int {
	if len(c.pending) == 0 {
		return 0
	}
	batch := c.pending
	c.pending = make(map[hex.Axial]struct{}, len(batch))
	for coord := range batch {
		c.recompute(coord)
	}
	c.flushes++
	return len(batch)
}

func (c *Coordinator) recompute(coord hex.Axial) {
	c.recomputes++
	var mask EdgeMask
	owner := gamemap.Unowned
	if t, ok := c.grid.GetTile(coord); ok {
		mask = CalculateEdgeMask(t, c.grid)
		owner = t.Owner()
	}

	b, tracked := c.borders[coord]
	switch {
	case mask == 0:
		if !tracked {
			return
		}
		last := *b
		delete(c.borders, coord)
		c.pool.release(b)
		c.emit(BorderEvent{Kind: BorderRemoved, Border: last})
	case !tracked:
		b = c.pool.acquire()
		*b = Border{Coord: coord, Mask: mask, OwnerID: owner}
		c.borders[coord] = b
		c.emit(BorderEvent{Kind: BorderCreated, Border: *b})
	case b.Mask != mask || b.OwnerID != owner:
		b.Mask, b.OwnerID = mask, owner
		c.emit(BorderEvent{Kind: BorderUpdated, Border: *b})
	}
}

// OnBorderChanged registers fn for border transitions.
func (c *Coordinator) OnBorderChanged(fn func(BorderEvent)) ObserverID {
	if fn == nil {
		return 0
	}
	c.nextObsID++
	c.observers = append(slices.Clip(c.observers), observer{id: c.nextObsID, fn: fn})
	return c.nextObsID
}

// RemoveObserver unregisters an observer.
func (c *Coordinator) RemoveObserver(id ObserverID) bool {
	i := slices.IndexFunc(c.observers, func(o observer) bool { return o.id == id })
	if i < 0 {
		return false
	}
	c.observers = slices.Delete(slices.Clone(c.observers), i, i+1)
	return true
}

func (c *Coordinator) emit(ev BorderEvent) {
	for _, o := range c.observers {
		c.notify(o, ev)
	}
}

func (c *Coordinator) notify(o observer, ev BorderEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("border observer panicked", "observer", o.id, "coord", ev.Border.Coord, "panic", r)
		}
	}()
	o.fn(ev)
}

// Border returns the tracked border at coord.
func (c *Coordinator) Border(coord hex.Axial) (Border, bool) {
	b, ok := c.borders[coord]
	if !ok {
		return Border{}, false
	}
	return *b, true
}

// Borders returns every tracked border ordered by coordinate.
func (c *Coordinator) Borders() []Border {
	out := make([]Border, 0, len(c.borders))
	for _, b := range c.borders {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b Border) int {
		return cmp.Or(cmp.Compare(a.Coord.R, b.Coord.R), cmp.Compare(a.Coord.Q, b.Coord.Q))
	})
	return out
}

// Stats returns activity counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Flushes:        c.flushes,
		Recomputations: c.recomputes,
		Tracked:        len(c.borders),
		Pending:        len(c.pending),
		Pool:           c.pool.stats(),
	}
}

// TickPriority implements tick.Tickable; the flush runs after game logic.
func (c *Coordinator) TickPriority() int { return tick.PriorityEndOfFrame }

// IsTickActive implements tick.Tickable.
func (c *Coordinator) IsTickActive() bool { return c.started && len(c.pending) > 0 }

// Tick implements tick.Tickable.
func (c *Coordinator) Tick(time.Duration) { c.Flush() }
