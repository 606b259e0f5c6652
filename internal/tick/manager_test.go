package tick

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type recorder struct {
	calls []string
}

type fakeSystem struct {
	name     string
	priority int
	inactive bool
	rec      *recorder
	onTick   func()
	ticks    int
	lastDT   time.Duration
}

func (p *fakeSystem) TickPriority() int  { return p.priority }
func (p *fakeSystem) IsTickActive() bool { return !p.inactive }
func (p *fakeSystem) Tick(dt time.Duration) {
	p.ticks++
	p.lastDT = dt
	if p.rec != nil {
		p.rec.calls = append(p.rec.calls, p.name)
	}
	if p.onTick != nil {
		p.onTick()
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestProcessTickPriorityOrderIsStable(t *testing.T) {
	rec := &recorder{}
	m := NewManager(WithLogger(quietLogger()))
	m.Register(&fakeSystem{name: "five", priority: 5, rec: rec})
	m.Register(&fakeSystem{name: "one-a", priority: 1, rec: rec})
	m.Register(&fakeSystem{name: "three", priority: 3, rec: rec})
	m.Register(&fakeSystem{name: "one-b", priority: 1, rec: rec})

	m.ProcessTick(16 * time.Millisecond)

	want := "one-a,one-b,three,five"
	if got := strings.Join(rec.calls, ","); got != want {
		t.Fatalf("expected order %s, got %s", want, got)
	}
}

func TestProcessTickIgnoresNonPositiveDelta(t *testing.T) {
	p := &fakeSystem{}
	m := NewManager()
	m.Register(p)
	m.ProcessTick(0)
	m.ProcessTick(-time.Second)
	if p.ticks != 0 {
		t.Fatalf("expected no ticks for non-positive delta, got %d", p.ticks)
	}
	if m.Stats().Ticks != 0 {
		t.Fatalf("expected no completed passes, got %d", m.Stats().Ticks)
	}
}

func TestInactiveTickableSkipped(t *testing.T) {
	active := &fakeSystem{}
	idle := &fakeSystem{inactive: true}
	m := NewManager()
	m.Register(active)
	m.Register(idle)
	m.ProcessTick(time.Millisecond)
	if active.ticks != 1 || idle.ticks != 0 {
		t.Fatalf("expected active=1 idle=0, got %d and %d", active.ticks, idle.ticks)
	}
	if active.lastDT != time.Millisecond {
		t.Fatalf("delta not forwarded: %v", active.lastDT)
	}
}

func TestRegisterIsIdempotentAndNilSafe(t *testing.T) {
	p := &fakeSystem{}
	m := NewManager()
	m.Register(p)
	m.Register(p)
	m.Register(nil)
	m.Unregister(nil)
	if m.Len() != 1 {
		t.Fatalf("expected one registration, got %d", m.Len())
	}
	m.ProcessTick(time.Millisecond)
	if p.ticks != 1 {
		t.Fatalf("duplicate registration must not double dispatch, got %d", p.ticks)
	}
	m.Unregister(p)
	if m.Len() != 0 || m.IsRegistered(p) {
		t.Fatalf("expected empty manager after unregister")
	}
}

func TestRegisterRejectsNilPointer(t *testing.T) {
	var missing *fakeSystem
	m := NewManager(WithLogger(quietLogger()))
	m.Register(missing)
	if m.Len() != 0 || m.IsRegistered(missing) {
		t.Fatalf("nil pointer must not be registered")
	}
	m.ProcessTick(time.Millisecond)
	if m.Stats().Faults != 0 {
		t.Fatalf("expected a clean pass, got %d faults", m.Stats().Faults)
	}
	m.Unregister(missing)
}

func TestReentrantRegistrationDuringDispatch(t *testing.T) {
	rec := &recorder{}
	m := NewManager()
	newcomer := &fakeSystem{name: "newcomer", priority: 0, rec: rec}
	var self *fakeSystem
	self = &fakeSystem{name: "self", priority: 1, rec: rec, onTick: func() {
		m.Unregister(self)
		m.Register(newcomer)
		if m.IsRegistered(newcomer) || !m.IsRegistered(self) {
			t.Errorf("changes must be deferred until the pass ends")
		}
	}}
	after := &fakeSystem{name: "after", priority: 2, rec: rec}
	m.Register(self)
	m.Register(after)

	m.ProcessTick(time.Millisecond)
	if got := strings.Join(rec.calls, ","); got != "self,after" {
		t.Fatalf("current pass must be unaffected, got %s", got)
	}
	if m.IsRegistered(self) || !m.IsRegistered(newcomer) {
		t.Fatalf("expected self absent and newcomer present after the pass")
	}

	rec.calls = nil
	m.ProcessTick(time.Millisecond)
	if got := strings.Join(rec.calls, ","); got != "newcomer,after" {
		t.Fatalf("expected newcomer to run first next pass, got %s", got)
	}
}

func TestJoinAndLeaveWithinOnePassEndsAbsent(t *testing.T) {
	m := NewManager()
	transient := &fakeSystem{}
	host := &fakeSystem{onTick: func() {
		m.Register(transient)
		m.Unregister(transient)
	}}
	m.Register(host)
	m.ProcessTick(time.Millisecond)
	if m.IsRegistered(transient) {
		t.Fatalf("tickable that joined and left mid-dispatch must end absent")
	}
}

func TestLeaveThenRejoinWithinOnePassEndsPresent(t *testing.T) {
	m := NewManager()
	other := &fakeSystem{}
	host := &fakeSystem{onTick: func() {
		m.Unregister(other)
		m.Register(other)
	}}
	m.Register(host)
	m.Register(other)
	m.ProcessTick(time.Millisecond)
	if !m.IsRegistered(other) {
		t.Fatalf("latest registration intent must win")
	}
}

func TestFaultIsolation(t *testing.T) {
	var logs bytes.Buffer
	m := NewManager(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	first := &fakeSystem{priority: 1}
	faulty := &fakeSystem{priority: 2, onTick: func() { panic("boom") }}
	third := &fakeSystem{priority: 3}
	m.Register(first)
	m.Register(faulty)
	m.Register(third)

	m.ProcessTick(time.Millisecond)
	if first.ticks != 1 || third.ticks != 1 {
		t.Fatalf("neighbours of a faulting tickable must still run: %d, %d", first.ticks, third.ticks)
	}
	if m.Stats().Faults != 1 {
		t.Fatalf("expected one fault, got %d", m.Stats().Faults)
	}
	if !strings.Contains(logs.String(), "tickable faulted") {
		t.Fatalf("fault was not logged: %s", logs.String())
	}
	if !m.IsRegistered(faulty) {
		t.Fatalf("faulting tickable must stay registered")
	}

	m.ProcessTick(time.Millisecond)
	if faulty.ticks != 2 {
		t.Fatalf("faulting tickable should be retried, got %d", faulty.ticks)
	}
}

func TestNestedProcessTickIgnored(t *testing.T) {
	m := NewManager(WithLogger(quietLogger()))
	inner := &fakeSystem{priority: 2}
	outer := &fakeSystem{priority: 1, onTick: func() { m.ProcessTick(time.Millisecond) }}
	m.Register(outer)
	m.Register(inner)
	m.ProcessTick(time.Millisecond)
	if inner.ticks != 1 {
		t.Fatalf("nested ProcessTick must not dispatch again, got %d", inner.ticks)
	}
}

func TestMarkDirtyResortsAfterPriorityChange(t *testing.T) {
	rec := &recorder{}
	a := &fakeSystem{name: "a", priority: 1, rec: rec}
	b := &fakeSystem{name: "b", priority: 2, rec: rec}
	m := NewManager()
	m.Register(a)
	m.Register(b)
	m.ProcessTick(time.Millisecond)

	a.priority = 3
	m.MarkDirty()
	rec.calls = nil
	m.ProcessTick(time.Millisecond)
	if got := strings.Join(rec.calls, ","); got != "b,a" {
		t.Fatalf("expected b,a after resort, got %s", got)
	}
}
