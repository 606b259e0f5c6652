package construction

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/internal/tick"
	"github.com/gravitas-games/hexrts/pkg/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func building(owner int, buildTime time.Duration, turns int) *models.Building {
	return &models.Building{
		Kind:    "farm",
		OwnerID: owner,
		Blueprint: models.Blueprint{
			Kind:       "farm",
			BuildTime:  buildTime,
			BuildTurns: turns,
		},
	}
}

type recorder struct{ events []Event }

func (r *recorder) handle(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(t EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func TestTurnEndAdvancesEveryJob(t *testing.T) {
	mode := tick.NewModeFlag(tick.TurnBased)
	q := NewQueue(1, mode, WithLogger(quietLogger()))
	a, _ := q.Enqueue(building(1, time.Second, 3))
	b, _ := q.Enqueue(building(1, time.Second, 3))

	q.OnTurnEnd(1)
	if a.Clock.TurnsRemaining() != 2 || b.Clock.TurnsRemaining() != 2 {
		t.Fatalf("both jobs should lose one turn: got %d and %d",
			a.Clock.TurnsRemaining(), b.Clock.TurnsRemaining())
	}
}

func TestTurnEndCompletesTogether(t *testing.T) {
	mode := tick.NewModeFlag(tick.TurnBased)
	bus := NewSimpleEventBus(quietLogger())
	rec := &recorder{}
	bus.Subscribe(2, rec.handle)
	q := NewQueue(2, mode, WithEventBus(bus), WithLogger(quietLogger()))

	tm := tick.NewTurnManager(mode, quietLogger())
	tm.AddListener(q)
	first, _ := q.Enqueue(building(2, 0, 1))
	second, _ := q.Enqueue(building(2, 0, 1))
	slow, _ := q.Enqueue(building(2, 0, 2))

	if _, err := tm.EndTurn(); err != nil {
		t.Fatalf("end turn: %v", err)
	}
	if !first.Building.Complete() || !second.Building.Complete() {
		t.Fatalf("one-turn jobs should both complete on the first turn end")
	}
	if q.Len() != 1 || slow.Building.State != models.BuildingUnderConstruction {
		t.Fatalf("two-turn job should remain queued")
	}
	if rec.count(EventJobQueued) != 3 || rec.count(EventJobCompleted) != 2 || rec.count(EventJobProgress) != 1 {
		t.Fatalf("unexpected events: %+v", rec.events)
	}
}

func TestRealTimeAdvancesOnlyHead(t *testing.T) {
	mode := tick.NewModeFlag(tick.RealTime)
	q := NewQueue(1, mode, WithLogger(quietLogger()))
	head, _ := q.Enqueue(building(1, 2*time.Second, 1))
	next, _ := q.Enqueue(building(1, 2*time.Second, 1))

	m := tick.NewManager(tick.WithLogger(quietLogger()))
	m.Register(q)
	m.ProcessTick(time.Second)
	if head.Progress() != 0.5 || next.Progress() != 0 {
		t.Fatalf("only the head should advance: head=%v next=%v", head.Progress(), next.Progress())
	}
	m.ProcessTick(time.Second)
	if !head.Building.Complete() {
		t.Fatalf("head should be complete")
	}
	if h, _ := q.Head(); h != next {
		t.Fatalf("second job should now be the head")
	}
}

func TestQueueSleepsInTurnBasedMode(t *testing.T) {
	mode := tick.NewModeFlag(tick.RealTime)
	q := NewQueue(1, mode, WithLogger(quietLogger()))
	job, _ := q.Enqueue(building(1, time.Second, 1))
	mode.Set(tick.TurnBased)

	if q.IsTickActive() {
		t.Fatalf("queue must not tick in turn-based mode")
	}
	q.OnTurnEnd(1)
	if job.Clock.Kind() != RealTimeClock || job.Progress() != 0 {
		t.Fatalf("clock is locked at enqueue time; a turn must not move a real-time job")
	}
}

func TestZeroCostJobCompletesOnFirstDispatch(t *testing.T) {
	q := NewQueue(1, tick.Fixed(tick.RealTime), WithLogger(quietLogger()))
	job, _ := q.Enqueue(building(1, 0, 0))
	if job.Progress() != 1 {
		t.Fatalf("zero-cost job should report full progress, got %v", job.Progress())
	}
	q.Tick(0)
	if !job.Building.Complete() || q.Completed() != 1 {
		t.Fatalf("zero-cost job should complete on the first tick")
	}
}

func TestCancel(t *testing.T) {
	q := NewQueue(1, nil, WithLogger(quietLogger()))
	job, _ := q.Enqueue(building(1, time.Minute, 1))
	if err := q.Cancel("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := q.Cancel(job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if q.Len() != 0 || !job.Building.Destroyed() {
		t.Fatalf("cancelled job should be gone and its building destroyed")
	}
	if _, err := q.Enqueue(job.Building); !errors.Is(err, ErrAlreadyBuilt) {
		t.Fatalf("destroyed building must not be requeued, got %v", err)
	}
	if _, err := q.Enqueue(nil); !errors.Is(err, ErrNilBuilding) {
		t.Fatalf("expected ErrNilBuilding, got %v", err)
	}
}

func TestResumeKeepsSavedClock(t *testing.T) {
	bus := NewSimpleEventBus(quietLogger())
	rec := &recorder{}
	bus.Subscribe(1, rec.handle)
	source := NewQueue(1, nil, WithLogger(quietLogger()))
	orig, _ := source.Enqueue(building(1, 4*time.Second, 2))
	source.Tick(3 * time.Second)
	saved := orig.Saved()

	// Resumed into a turn-based queue, the job stays on the frame clock.
	q := NewQueue(1, tick.NewModeFlag(tick.TurnBased), WithEventBus(bus), WithLogger(quietLogger()))
	b := building(1, 4*time.Second, 2)
	job, err := q.Resume(b, saved)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if job.ID != orig.ID || job.Clock.Kind() != RealTimeClock || job.Clock.Remaining() != time.Second {
		t.Fatalf("resumed job = %+v", job)
	}
	if b.State != models.BuildingUnderConstruction || len(rec.events) != 0 {
		t.Fatalf("state %v, events %d", b.State, len(rec.events))
	}

	b.State = models.BuildingComplete
	if _, err := q.Resume(b, saved); !errors.Is(err, ErrAlreadyBuilt) {
		t.Fatalf("expected ErrAlreadyBuilt, got %v", err)
	}
}

func TestEventHandlerPanicIsContained(t *testing.T) {
	bus := NewSimpleEventBus(quietLogger())
	bus.Subscribe(1, func(Event) { panic("boom") })
	q := NewQueue(1, nil, WithEventBus(bus), WithLogger(quietLogger()))
	if _, err := q.Enqueue(building(1, time.Second, 1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("queue state must survive a faulting handler")
	}
}

func TestPlace(t *testing.T) {
	plains := gamemap.NewTile(hex.Axial{}, gamemap.Plains)
	water := gamemap.NewTile(hex.Axial{Q: 1}, gamemap.Water)
	plains.SetOwner(1)
	water.SetOwner(1)

	if err := Place(water, building(1, 0, 0)); !errors.Is(err, ErrNotBuildable) {
		t.Fatalf("expected ErrNotBuildable, got %v", err)
	}
	if err := Place(plains, building(2, 0, 0)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	farm := building(1, 0, 0)
	if err := Place(plains, farm); err != nil {
		t.Fatalf("place: %v", err)
	}
	if plains.OccupyingBuilding() != farm {
		t.Fatalf("tile should reference the placed building")
	}
	if err := Place(plains, building(1, 0, 0)); !errors.Is(err, ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
	farm.Destroy()
	if err := Place(plains, building(1, 0, 0)); err != nil {
		t.Fatalf("destroyed occupant should free the site: %v", err)
	}
	if err := Place(nil, farm); !errors.Is(err, ErrNoTile) {
		t.Fatalf("expected ErrNoTile, got %v", err)
	}
}
