package construction

import (
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gravitas-games/hexrts/internal/tick"
	"github.com/gravitas-games/hexrts/pkg/models"
)

var (
	// ErrJobNotFound is returned when a job id is not in the queue.
	ErrJobNotFound = errors.New("construction job not found")
	// ErrNilBuilding is returned when enqueuing nothing.
	ErrNilBuilding = errors.New("construction: nil building")
	// ErrAlreadyBuilt is returned when enqueuing a complete or destroyed building.
	ErrAlreadyBuilt = errors.New("construction: building is not buildable")
)

// JobID uniquely identifies a construction job.
type JobID string

// Job is one queued construction. The clock kind is locked at enqueue time.
type Job struct {
	ID       JobID            `json:"id"`
	Owner    int              `json:"owner"`
	Building *models.Building `json:"building"`
	Clock    ProgressClock    `json:"-"`
	Queued   time.Time        `json:"queued"`
}

// Progress returns the job's completion in [0,1].
func (j *Job) Progress() float64 { return j.Clock.Progress() }

// Queue is the build queue of one owner. It is driven by a tick.Manager in
// real time and by a tick.TurnManager in turn-based play, and must only be
// used from the simulation goroutine.
type Queue struct {
	owner    int
	mode     tick.ModeSource
	priority int
	jobs     []*Job
	bus      EventBus
	logger   *slog.Logger

	completed uint64
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithEventBus sets the bus that receives job events.
func WithEventBus(bus EventBus) QueueOption {
	return func(q *Queue) {
		if bus != nil {
			q.bus = bus
		}
	}
}

// WithLogger sets the queue's logger.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithPriority sets the tick priority of the queue.
func WithPriority(p int) QueueOption {
	return func(q *Queue) { q.priority = p }
}

// NewQueue creates an empty queue for owner. A nil mode source means real time.
func NewQueue(owner int, mode tick.ModeSource, opts ...QueueOption) *Queue {
	if mode == nil {
		mode = tick.Fixed(tick.RealTime)
	}
	q := &Queue{
		owner:  owner,
		mode:   mode,
		bus:    NullEventBus{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Owner returns the owner this queue builds for.
func (q *Queue) Owner() int { return q.owner }

// Enqueue appends a job for b. The clock is chosen from the current mode and
// b's blueprint, and does not change afterwards.
func (q *Queue) Enqueue(b *models.Building) (*Job, error) {
	if b == nil {
		return nil, ErrNilBuilding
	}
	if b.Complete() || b.Destroyed() {
		return nil, ErrAlreadyBuilt
	}
	mode := q.mode.Mode()
	job := &Job{
		ID:       JobID(uuid.NewString()),
		Owner:    q.owner,
		Building: b,
		Clock:    ClockFor(mode, b.Blueprint.BuildTime, b.Blueprint.BuildTurns),
		Queued:   time.Now(),
	}
	b.State = models.BuildingUnderConstruction
	q.jobs = append(q.jobs, job)
	q.publish(EventJobQueued, job)
	q.logger.Debug("construction queued", "owner", q.owner, "job", job.ID, "kind", b.Kind, "clock", job.Clock.Kind())
	return job, nil
}

// SavedJob is the stored form of a queued job. The building itself is stored
// with the tile it occupies and is matched back by BuildingID.
type SavedJob struct {
	ID         JobID      `json:"id"`
	Owner      int        `json:"owner"`
	BuildingID string     `json:"building_id"`
	Q          int        `json:"q"`
	R          int        `json:"r"`
	Clock      ClockState `json:"clock"`
}

// Saved returns the job in stored form.
func (j *Job) Saved() SavedJob {
	return SavedJob{
		ID:         j.ID,
		Owner:      j.Owner,
		BuildingID: j.Building.ID,
		Q:          j.Building.Q,
		R:          j.Building.R,
		Clock:      j.Clock.State(),
	}
}

// Resume appends a job restored from storage. Unlike Enqueue it keeps the
// saved id and clock, including its kind, and publishes no event.
func (q *Queue) Resume(b *models.Building, saved SavedJob) (*Job, error) {
	if b == nil {
		return nil, ErrNilBuilding
	}
	if b.Complete() || b.Destroyed() {
		return nil, ErrAlreadyBuilt
	}
	id := saved.ID
	if id == "" {
		id = JobID(uuid.NewString())
	}
	job := &Job{
		ID:       id,
		Owner:    q.owner,
		Building: b,
		Clock:    saved.Clock.Clock(),
		Queued:   time.Now(),
	}
	b.State = models.BuildingUnderConstruction
	q.jobs = append(q.jobs, job)
	q.logger.Debug("construction resumed", "owner", q.owner, "job", job.ID, "kind", b.Kind,
		"clock", job.Clock.Kind(), "progress", job.Progress())
	return job, nil
}

// Cancel removes a job. The building is marked destroyed so tiles stop
// reporting it as their occupant.
func (q *Queue) Cancel(id JobID) error {
	i := slices.IndexFunc(q.jobs, func(j *Job) bool { return j.ID == id })
	if i < 0 {
		return ErrJobNotFound
	}
	job := q.jobs[i]
	q.jobs = slices.Delete(q.jobs, i, i+1)
	job.Building.Destroy()
	q.publish(EventJobCancelled, job)
	return nil
}

// Jobs returns the queued jobs in order.
func (q *Queue) Jobs() []*Job { return slices.Clone(q.jobs) }

// Len returns the number of queued jobs.
func (q *Queue) Len() int { return len(q.jobs) }

// Completed returns how many jobs this queue has finished.
func (q *Queue) Completed() uint64 { return q.completed }

// Head returns the first real-time job, the only one the frame clock
// advances.
func (q *Queue) Head() (*Job, bool) {
	for _, j := range q.jobs {
		if j.Clock.Kind() == RealTimeClock {
			return j, true
		}
	}
	return nil, false
}

// TickPriority implements tick.Tickable.
func (q *Queue) TickPriority() int { return q.priority }

// IsTickActive implements tick.Tickable. The queue sleeps in turn-based play
// and when it has nothing on the frame clock.
func (q *Queue) IsTickActive() bool {
	if q.mode.Mode() == tick.TurnBased {
		return false
	}
	_, ok := q.Head()
	return ok
}

// Tick advances the head job by dt and completes it when done.
func (q *Queue) Tick(dt time.Duration) {
	head, ok := q.Head()
	if !ok {
		return
	}
	head.Clock.Advance(dt)
	if head.Clock.Complete() {
		q.complete(head)
	}
}

// OnTurnStart implements tick.TurnListener.
func (q *Queue) OnTurnStart(int) {}

// OnTurnEnd advances every turn-clocked job by one turn, then completes the
// finished ones, so no job sees another's partial turn.
func (q *Queue) OnTurnEnd(turn int) {
	var advanced []*Job
	for _, j := range q.jobs {
		if j.Clock.Kind() != TurnClock {
			continue
		}
		j.Clock.AdvanceTurn()
		advanced = append(advanced, j)
	}
	for _, j := range advanced {
		if j.Clock.Complete() {
			q.complete(j)
		} else {
			q.publish(EventJobProgress, j)
		}
	}
	if len(advanced) > 0 {
		q.logger.Debug("construction turn", "owner", q.owner, "turn", turn, "advanced", len(advanced))
	}
}

func (q *Queue) complete(job *Job) {
	i := slices.Index(q.jobs, job)
	if i < 0 {
		return
	}
	q.jobs = slices.Delete(q.jobs, i, i+1)
	job.Building.State = models.BuildingComplete
	q.completed++
	q.publish(EventJobCompleted, job)
	q.logger.Info("construction complete", "owner", q.owner, "job", job.ID, "kind", job.Building.Kind)
}

func (q *Queue) publish(t EventType, job *Job) {
	q.bus.Publish(Event{Type: t, Job: job, Timestamp: time.Now()})
}
