package territory

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/internal/tick"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func startedCoordinator(t *testing.T, g *gamemap.Grid) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(g, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return c
}

func TestNewCoordinatorRejectsNilGrid(t *testing.T) {
	if _, err := NewCoordinator(nil); !errors.Is(err, ErrNilGrid) {
		t.Fatalf("expected ErrNilGrid, got %v", err)
	}
}

func TestBatchingRecomputesEachAffectedTileOnce(t *testing.T) {
	g := diskGrid(t, 4)
	c := startedCoordinator(t, g)
	before := c.Stats().Recomputations

	changed := []hex.Axial{{Q: 0, R: 0}, {Q: 1, R: 0}, {Q: 0, R: 1}}
	affected := map[hex.Axial]bool{}
	for _, a := range changed {
		mustTile(t, g, a).SetOwner(7)
		affected[a] = true
		for _, n := range a.Neighbors() {
			affected[n] = true
		}
	}
	if c.Pending() != len(affected) {
		t.Fatalf("expected %d pending coordinates, got %d", len(affected), c.Pending())
	}

	processed := c.Flush()
	got := c.Stats().Recomputations - before
	if processed != len(affected) || got != uint64(len(affected)) {
		t.Fatalf("expected %d recomputations, got processed=%d counted=%d", len(affected), processed, got)
	}
	if c.Pending() != 0 {
		t.Fatalf("pending set should be drained")
	}
	if c.Flush() != 0 {
		t.Fatalf("second flush should be a no-op")
	}
	if len(c.Borders()) != 3 {
		t.Fatalf("expected 3 borders, got %d", len(c.Borders()))
	}
	for _, a := range changed {
		b, ok := c.Border(a)
		if !ok || b.OwnerID != 7 || b.Mask != CalculateEdgeMask(mustTile(t, g, a), g) {
			t.Fatalf("border at %v does not match current state: %+v", a, b)
		}
	}
}

func TestBorderLifecycleReusesPooledHandles(t *testing.T) {
	g := diskGrid(t, 3)
	c := startedCoordinator(t, g)
	var events []BorderEvent
	c.OnBorderChanged(func(ev BorderEvent) { events = append(events, ev) })

	a := mustTile(t, g, hex.Axial{Q: -1, R: 0})
	a.SetOwner(1)
	c.Flush()
	if len(events) != 1 || events[0].Kind != BorderCreated {
		t.Fatalf("expected one created event, got %+v", events)
	}

	a.SetOwner(gamemap.Unowned)
	c.Flush()
	if len(events) != 2 || events[1].Kind != BorderRemoved || events[1].Border.OwnerID != 1 {
		t.Fatalf("expected removed event carrying the old owner, got %+v", events)
	}
	if st := c.Stats().Pool; st.InUse != 0 || st.Free != 1 {
		t.Fatalf("handle should be back in the pool: %+v", st)
	}

	mustTile(t, g, hex.Axial{Q: 2, R: -1}).SetOwner(2)
	c.Flush()
	if st := c.Stats().Pool; st.Allocated != 1 || st.InUse != 1 {
		t.Fatalf("expected pooled handle reuse, got %+v", st)
	}
}

func TestNeighbourCaptureUpdatesBorder(t *testing.T) {
	g := diskGrid(t, 3)
	c := startedCoordinator(t, g)
	centre := mustTile(t, g, hex.Axial{})
	centre.SetOwner(1)
	c.Flush()

	var updates int
	c.OnBorderChanged(func(ev BorderEvent) {
		if ev.Kind == BorderUpdated && ev.Border.Coord == centre.Coord() {
			updates++
		}
	})
	mustTile(t, g, hex.Axial{Q: 1, R: 0}).SetOwner(1)
	c.Flush()
	b, _ := c.Border(centre.Coord())
	if updates != 1 || b.Mask.Has(0) {
		t.Fatalf("east edge should no longer be a border: updates=%d mask=%s", updates, b.Mask)
	}
}

func TestInteriorTileLosesBorder(t *testing.T) {
	g := diskGrid(t, 3)
	c := startedCoordinator(t, g)
	for _, a := range hex.Disk(hex.Axial{}, 1) {
		mustTile(t, g, a).SetOwner(3)
	}
	c.Flush()
	if _, ok := c.Border(hex.Axial{}); ok {
		t.Fatalf("fully surrounded tile must not track a border")
	}
	if c.Stats().Tracked != 6 {
		t.Fatalf("expected 6 rim borders, got %d", c.Stats().Tracked)
	}
}

func TestStartBuildsInitialBorders(t *testing.T) {
	g := diskGrid(t, 2)
	mustTile(t, g, hex.Axial{}).SetOwner(0)
	c := startedCoordinator(t, g)
	if _, ok := c.Border(hex.Axial{}); !ok {
		t.Fatalf("pre-owned tiles must get borders on start")
	}
}

func TestStartTimesOutOnEmptyGrid(t *testing.T) {
	c, _ := NewCoordinator(gamemap.NewGrid(), WithLogger(quietLogger()),
		WithWaitTimeout(30*time.Millisecond), WithPollInterval(5*time.Millisecond))
	err := c.Start(context.Background())
	if !errors.Is(err, ErrGridNotReady) {
		t.Fatalf("expected ErrGridNotReady, got %v", err)
	}
	if c.Started() {
		t.Fatalf("coordinator must stay inert after a failed start")
	}
}

func TestStartWaitsForLateGrid(t *testing.T) {
	g := gamemap.NewGrid()
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = g.Add(gamemap.NewTile(hex.Axial{}, gamemap.Plains))
	}()
	c, _ := NewCoordinator(g, WithLogger(quietLogger()),
		WithWaitTimeout(2*time.Second), WithPollInterval(5*time.Millisecond))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed once the grid fills, got %v", err)
	}
}

func TestCloseReleasesHandlesAndUnsubscribes(t *testing.T) {
	g := diskGrid(t, 2)
	c := startedCoordinator(t, g)
	mustTile(t, g, hex.Axial{}).SetOwner(1)
	mustTile(t, g, hex.Axial{Q: 2, R: 0}).SetOwner(2)
	c.Flush()

	c.Close()
	if st := c.Stats(); st.Tracked != 0 || st.Pool.InUse != 0 || st.Pool.Free != 2 {
		t.Fatalf("close must return every handle: %+v", st)
	}
	mustTile(t, g, hex.Axial{Q: -1, R: 0}).SetOwner(1)
	if c.Pending() != 0 {
		t.Fatalf("closed coordinator must not queue work")
	}
}

func TestCoordinatorFlushesAtEndOfFrame(t *testing.T) {
	g := diskGrid(t, 2)
	c := startedCoordinator(t, g)
	m := tick.NewManager(tick.WithLogger(quietLogger()))
	m.Register(c)
	m.Register(&claimer{tile: mustTile(t, g, hex.Axial{}), owner: 5})

	m.ProcessTick(16 * time.Millisecond)
	if _, ok := c.Border(hex.Axial{}); !ok {
		t.Fatalf("border should be computed in the same frame as the claim")
	}
}

type claimer struct {
	tile  *gamemap.Tile
	owner int
}

func (cl *claimer) TickPriority() int     { return 0 }
func (cl *claimer) IsTickActive() bool    { return true }
func (cl *claimer) Tick(dt time.Duration) { cl.tile.SetOwner(cl.owner) }
