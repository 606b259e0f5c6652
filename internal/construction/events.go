package construction

import (
	"log/slog"
	"sync"
	"time"
)

// EventType represents the type of construction event.
type EventType int

const (
	// EventJobQueued is emitted when a job enters a queue.
	EventJobQueued EventType = iota
	// EventJobProgress is emitted when a turn advances turn-clocked jobs.
	EventJobProgress
	// EventJobCompleted is emitted when a building finishes.
	EventJobCompleted
	// EventJobCancelled is emitted when a job is cancelled.
	EventJobCancelled
)

// String returns a human-readable representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventJobQueued:
		return "JobQueued"
	case EventJobProgress:
		return "JobProgress"
	case EventJobCompleted:
		return "JobCompleted"
	case EventJobCancelled:
		return "JobCancelled"
	default:
		return "Unknown"
	}
}

// Event represents a construction event.
type Event struct {
	Type      EventType `json:"type"`
	Job       *Job      `json:"job"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBus manages event subscriptions and delivery.
type EventBus interface {
	// Subscribe registers a handler for events of one owner's jobs.
	Subscribe(owner int, handler func(Event))

	// Unsubscribe removes the handler for an owner.
	Unsubscribe(owner int)

	// Publish sends an event to subscribed handlers.
	Publish(event Event)
}

// SimpleEventBus is an in-memory event bus. Handlers run synchronously on
// the publishing goroutine, which is the simulation loop.
type SimpleEventBus struct {
	mu       sync.RWMutex
	handlers map[int]func(Event)
	logger   *slog.Logger
}

// NewSimpleEventBus creates a new event bus.
func NewSimpleEventBus(logger *slog.Logger) *SimpleEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimpleEventBus{
		handlers: make(map[int]func(Event)),
		logger:   logger,
	}
}

// Subscribe registers a handler for events for a specific owner.
func (bus *SimpleEventBus) Subscribe(owner int, handler func(Event)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handlers[owner] = handler
}

// Unsubscribe removes the handler for an owner.
func (bus *SimpleEventBus) Unsubscribe(owner int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.handlers, owner)
}

// Publish sends an event to the handler of the job's owner.
func (bus *SimpleEventBus) Publish(event Event) {
	if event.Job == nil {
		return
	}
	bus.mu.RLock()
	handler, ok := bus.handlers[event.Job.Owner]
	bus.mu.RUnlock()
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error("construction event handler panicked", "event", event.Type, "owner", event.Job.Owner, "panic", r)
		}
	}()
	handler(event)
}

// NullEventBus is an event bus that does nothing (for testing or when events not needed).
type NullEventBus struct{}

// Subscribe does nothing.
func (NullEventBus) Subscribe(int, func(Event)) {}

// Unsubscribe does nothing.
func (NullEventBus) Unsubscribe(int) {}

// Publish does nothing.
func (NullEventBus) Publish(Event) {}
