// Package game assembles the territory core into a playable world: one grid,
// one tick manager, one turn manager and the systems they drive.
package game

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gravitas-games/hexrts/internal/config"
	"github.com/gravitas-games/hexrts/internal/construction"
	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/internal/territory"
	"github.com/gravitas-games/hexrts/internal/tick"
	"github.com/gravitas-games/hexrts/pkg/models"
)

// Tick priorities of the world's systems. Borders always flush last.
const (
	PriorityConstruction = 100
	PriorityRegen        = 200
)

var (
	// ErrNoTile is returned for commands aimed at a coordinate with no tile.
	ErrNoTile = errors.New("no tile at coordinate")
	// ErrTileOwned is returned when claiming a tile another owner holds.
	ErrTileOwned = errors.New("tile owned by another player")
	// ErrNotAdjacent is returned when a claim does not touch the owner's territory.
	ErrNotAdjacent = errors.New("tile does not border own territory")
	// ErrUnknownBlueprint is returned for building kinds with no blueprint.
	ErrUnknownBlueprint = errors.New("unknown building kind")
	// ErrInvalidOwner is returned for negative owner ids.
	ErrInvalidOwner = errors.New("invalid owner id")
)

// World is single-threaded: every method must be called from the goroutine
// that runs the simulation.
type World struct {
	Grid    *gamemap.Grid
	Layout  hex.Layout
	Mode    *tick.ModeFlag
	Ticks   *tick.Manager
	Turns   *tick.TurnManager
	Borders *territory.Coordinator
	Regen   *gamemap.Regenerator
	Events  *construction.SimpleEventBus

	queues     map[int]*construction.Queue
	blueprints map[models.BuildingKind]models.Blueprint

	frames  uint64
	elapsed time.Duration
	logger  *slog.Logger
}

type worldOptions struct {
	grid   *gamemap.Grid
	jobs   []construction.SavedJob
	logger *slog.Logger
}

// Option configures NewWorld.
type Option func(*worldOptions)

// WithGrid uses a preloaded grid instead of generating one.
func WithGrid(g *gamemap.Grid) Option {
	return func(o *worldOptions) { o.grid = g }
}

// WithJobs resumes construction jobs saved alongside a preloaded grid.
func WithJobs(jobs []construction.SavedJob) Option {
	return func(o *worldOptions) { o.jobs = jobs }
}

// WithLogger sets the logger shared by every system of the world.
func WithLogger(l *slog.Logger) Option {
	return func(o *worldOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewWorld builds a world from cfg. When borders are enabled it waits for the
// grid to be populated; if that times out the world still runs, without
// borders, and the failure is logged.
func NewWorld(ctx context.Context, cfg *config.Config, opts ...Option) (*World, error) {
	o := worldOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	layout, err := hex.NewLayout(cfg.Simulation.HexSize)
	if err != nil {
		return nil, err
	}

	g := o.grid
	if g == nil {
		g = gamemap.Generate(gamemap.GenConfig{
			Radius:        cfg.Session.MapRadius,
			Seed:          cfg.Simulation.Seed,
			SeaLevel:      cfg.Simulation.SeaLevel,
			MountainLevel: cfg.Simulation.MountainLevel,
			RegenScale:    cfg.Simulation.Regen,
		}, gamemap.WithLogger(o.logger))
	}

	mode := tick.NewModeFlag(cfg.Mode())
	w := &World{
		Grid:       g,
		Layout:     layout,
		Mode:       mode,
		Ticks:      tick.NewManager(tick.WithLogger(o.logger)),
		Turns:      tick.NewTurnManager(mode, o.logger),
		Events:     construction.NewSimpleEventBus(o.logger),
		queues:     make(map[int]*construction.Queue),
		blueprints: make(map[models.BuildingKind]models.Blueprint),
		logger:     o.logger,
	}
	for _, bp := range cfg.Simulation.Blueprints {
		kind := models.BuildingKind(bp.Kind)
		w.blueprints[kind] = models.Blueprint{Kind: kind, BuildTime: bp.BuildTime, BuildTurns: bp.BuildTurns}
	}

	w.resumeConstruction(o.jobs)

	w.Regen = gamemap.NewRegenerator(g, mode, PriorityRegen)
	w.Ticks.Register(w.Regen)
	w.Turns.AddListener(w.Regen)

	if cfg.Borders.On() {
		borders, err := territory.NewCoordinator(g,
			territory.WithLogger(o.logger),
			territory.WithWaitTimeout(cfg.Borders.WaitTimeout),
			territory.WithPollInterval(cfg.Borders.PollInterval),
		)
		if err != nil {
			return nil, err
		}
		if err := borders.Start(ctx); err != nil {
			o.logger.Error("territory borders disabled", "error", err)
		} else {
			w.Borders = borders
			w.Ticks.Register(borders)
		}
	}

	w.logger.Info("world ready", "tiles", g.Len(), "mode", mode.Mode(), "borders", w.Borders != nil)
	return w, nil
}

// Close detaches the border coordinator from the grid.
func (w *World) Close() {
	if w.Borders != nil {
		w.Ticks.Unregister(w.Borders)
		w.Borders.Close()
	}
}

// Frame advances the world by dt. Border changes caused during the frame are
// flushed at its end.
func (w *World) Frame(dt time.Duration) {
	w.Ticks.ProcessTick(dt)
	w.frames++
	if dt > 0 {
		w.elapsed += dt
	}
}

// Frames returns how many frames have run.
func (w *World) Frames() uint64 { return w.frames }

// Elapsed returns the total frame time simulated.
func (w *World) Elapsed() time.Duration { return w.elapsed }

// EndTurn closes the current turn and flushes the borders it changed. It
// fails with tick.ErrNotTurnBased in real-time play.
func (w *World) EndTurn() (int, error) {
	turn, err := w.Turns.EndTurn()
	if err != nil {
		return turn, err
	}
	if w.Borders != nil {
		w.Borders.Flush()
	}
	return turn, nil
}

// SetMode switches the execution mode. Queued jobs keep the clock they were
// created with.
func (w *World) SetMode(m tick.Mode) tick.Mode {
	prev := w.Mode.Set(m)
	if prev != m {
		w.logger.Info("mode switched", "from", prev, "to", m)
	}
	return prev
}

// Claim gives owner every unowned tile within radius of centre and returns
// how many tiles changed hands. The centre must exist and not belong to
// another owner.
func (w *World) Claim(owner int, centre hex.Axial, radius int) (int, error) {
	if owner < 0 {
		return 0, ErrInvalidOwner
	}
	t, ok := w.Grid.GetTile(centre)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrNoTile, centre)
	}
	if t.IsOwned() && !t.OwnedBy(owner) {
		return 0, fmt.Errorf("%w: %v", ErrTileOwned, centre)
	}
	n := 0
	for _, c := range hex.Disk(centre, max(0, radius)) {
		t, ok := w.Grid.GetTile(c)
		if !ok || t.IsOwned() {
			continue
		}
		t.SetOwner(owner)
		n++
	}
	return n, nil
}

// ClaimTile extends owner's territory by one tile. The tile must be neutral
// and touch a tile owner already holds, unless owner holds nothing yet.
func (w *World) ClaimTile(owner int, c hex.Axial) error {
	if owner < 0 {
		return ErrInvalidOwner
	}
	t, ok := w.Grid.GetTile(c)
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoTile, c)
	}
	if t.OwnedBy(owner) {
		return nil
	}
	if t.IsOwned() {
		return fmt.Errorf("%w: %v", ErrTileOwned, c)
	}
	if !w.touches(owner, c) && len(w.Grid.OwnedBy(owner)) > 0 {
		return fmt.Errorf("%w: %v", ErrNotAdjacent, c)
	}
	t.SetOwner(owner)
	return nil
}

// Release returns a tile owner holds to neutral. A tile with a building on
// it, finished or not, cannot be released.
func (w *World) Release(owner int, c hex.Axial) error {
	t, ok := w.Grid.GetTile(c)
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoTile, c)
	}
	if !t.OwnedBy(owner) {
		return fmt.Errorf("%w: %v", ErrTileOwned, c)
	}
	if t.IsOccupied() {
		return fmt.Errorf("%w: %v", construction.ErrOccupied, c)
	}
	t.SetOwner(gamemap.Unowned)
	return nil
}

func (w *World) touches(owner int, c hex.Axial) bool {
	for d := range 6 {
		if n, ok := w.Grid.Neighbor(c, d); ok && n.OwnedBy(owner) {
			return true
		}
	}
	return false
}

// Blueprint returns the construction cost of kind.
func (w *World) Blueprint(kind models.BuildingKind) (models.Blueprint, bool) {
	bp, ok := w.blueprints[kind]
	return bp, ok
}

// Queue returns owner's build queue, creating and registering it on first use.
func (w *World) Queue(owner int) *construction.Queue {
	if q, ok := w.queues[owner]; ok {
		return q
	}
	q := construction.NewQueue(owner, w.Mode,
		construction.WithEventBus(w.Events),
		construction.WithLogger(w.logger),
		construction.WithPriority(PriorityConstruction),
	)
	w.queues[owner] = q
	w.Ticks.Register(q)
	w.Turns.AddListener(q)
	return q
}

// PlaceBuilding puts a new building of kind on c and queues its construction.
func (w *World) PlaceBuilding(owner int, c hex.Axial, kind models.BuildingKind) (*construction.Job, error) {
	if owner < 0 {
		return nil, ErrInvalidOwner
	}
	bp, ok := w.blueprints[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlueprint, kind)
	}
	t, ok := w.Grid.GetTile(c)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoTile, c)
	}
	b := &models.Building{
		ID:        uuid.NewString(),
		Kind:      kind,
		OwnerID:   owner,
		State:     models.BuildingPlanned,
		Blueprint: bp,
	}
	if err := construction.Place(t, b); err != nil {
		return nil, err
	}
	job, err := w.Queue(owner).Enqueue(b)
	if err != nil {
		t.ClearOccupyingBuilding()
		return nil, err
	}
	return job, nil
}

// CancelBuilding cancels one of owner's construction jobs.
func (w *World) CancelBuilding(owner int, id construction.JobID) error {
	q, ok := w.queues[owner]
	if !ok {
		return construction.ErrJobNotFound
	}
	return q.Cancel(id)
}

// SavedJobs returns every queued job in stored form, by owner and then in
// queue order.
func (w *World) SavedJobs() []construction.SavedJob {
	var saved []construction.SavedJob
	for _, owner := range slices.Sorted(maps.Keys(w.queues)) {
		for _, j := range w.queues[owner].Jobs() {
			saved = append(saved, j.Saved())
		}
	}
	return saved
}

// resumeConstruction puts every unfinished building on the grid back in its
// owner's queue. Buildings with a saved job keep its clock; the rest start
// over under the current mode.
func (w *World) resumeConstruction(saved []construction.SavedJob) {
	pending := make(map[string]*models.Building)
	for t := range w.Grid.Tiles() {
		b := t.OccupyingBuilding()
		if b == nil || b.Complete() {
			continue
		}
		if b.OwnerID < 0 {
			w.logger.Warn("dropping unowned building", "building", b.ID, "coord", t.Coord())
			t.ClearOccupyingBuilding()
			continue
		}
		pending[b.ID] = b
	}
	if len(pending) == 0 {
		return
	}

	resumed := 0
	for _, sj := range saved {
		b, ok := pending[sj.BuildingID]
		if !ok {
			w.logger.Debug("saved job has no building", "job", sj.ID, "building", sj.BuildingID)
			continue
		}
		if _, err := w.Queue(b.OwnerID).Resume(b, sj); err != nil {
			w.logger.Warn("resume construction", "job", sj.ID, "error", err)
			continue
		}
		delete(pending, sj.BuildingID)
		resumed++
	}

	orphans := slices.SortedFunc(maps.Values(pending), func(a, b *models.Building) int {
		return cmp.Or(cmp.Compare(a.Q, b.Q), cmp.Compare(a.R, b.R))
	})
	restarted := 0
	for _, b := range orphans {
		if _, err := w.Queue(b.OwnerID).Enqueue(b); err != nil {
			w.logger.Warn("restart construction", "building", b.ID, "error", err)
			continue
		}
		restarted++
	}
	w.logger.Info("construction restored", "resumed", resumed, "restarted", restarted)
}

// Owners returns every owner with a build queue or territory, ascending.
func (w *World) Owners() []int {
	seen := make(map[int]bool)
	for owner := range w.queues {
		seen[owner] = true
	}
	for t := range w.Grid.Tiles() {
		if t.IsOwned() {
			seen[t.Owner()] = true
		}
	}
	return sortedKeys(seen)
}
