package persistence

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gravitas-games/hexrts/internal/construction"
	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/pkg/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "world.db"), quietLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleGrid(t *testing.T) *gamemap.Grid {
	t.Helper()
	cfg := gamemap.DefaultGenConfig()
	cfg.Radius = 4
	cfg.Seed = 99
	g := gamemap.Generate(cfg, gamemap.WithLogger(quietLogger()))

	centre, _ := g.GetTile(hex.Axial{})
	centre.SetTerrain(gamemap.Plains)
	centre.SetOwner(2)
	centre.AddResource(gamemap.ResourceGold, gamemap.Deposit{Amount: 5, Max: 10})
	centre.SetOccupyingBuilding(&models.Building{ID: "b-1", Kind: "farm", OwnerID: 2, State: models.BuildingComplete})
	return g
}

func assertSameGrid(t *testing.T, want, got *gamemap.Grid) {
	t.Helper()
	if got.Len() != want.Len() {
		t.Fatalf("tile count %d, want %d", got.Len(), want.Len())
	}
	for w := range want.Tiles() {
		g, ok := got.GetTile(w.Coord())
		if !ok {
			t.Fatalf("missing tile %v", w.Coord())
		}
		if g.Terrain != w.Terrain || g.Owner() != w.Owner() || len(g.Resources()) != len(w.Resources()) {
			t.Fatalf("tile %v differs: %v/%d vs %v/%d", w.Coord(), g.Terrain, g.Owner(), w.Terrain, w.Owner())
		}
	}
	centre, _ := got.GetTile(hex.Axial{})
	b := centre.OccupyingBuilding()
	if b == nil || b.ID != "b-1" || !b.Complete() {
		t.Fatalf("building not restored: %+v", b)
	}
	if d, _ := centre.Resource(gamemap.ResourceGold); d.Amount != 5 {
		t.Fatalf("gold deposit = %+v", d)
	}
}

func TestSaveAndLoadGrid(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	want := sampleGrid(t)

	if err := db.SaveGrid(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	// a second save replaces the first
	if err := db.SaveGrid(ctx, want); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err := db.LoadGrid(ctx, gamemap.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameGrid(t, want, got)
}

func TestLoadIntoRejectsDuplicates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	g := sampleGrid(t)
	if err := db.SaveGrid(ctx, g); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := db.LoadInto(ctx, g); !errors.Is(err, gamemap.ErrTileExists) {
		t.Fatalf("expected ErrTileExists, got %v", err)
	}
}

func TestSnapshots(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.LatestSnapshot(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	g := sampleGrid(t)
	if err := db.SaveSnapshot(ctx, 3, g); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	centre, _ := g.GetTile(hex.Axial{})
	centre.SetOwner(5)
	if err := db.SaveSnapshot(ctx, 4, g); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if n, _ := db.SnapshotCount(ctx); n != 2 {
		t.Fatalf("expected 2 snapshots, got %d", n)
	}

	s, err := db.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if s.Turn != 4 {
		t.Fatalf("latest turn = %d, want 4", s.Turn)
	}
	restored, err := s.Grid(gamemap.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	assertSameGrid(t, g, restored)
}

func TestLZ4RoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("hex tile ", 500))
	packed, err := compressLZ4(data)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(packed) >= len(data) {
		t.Fatalf("repetitive input should shrink: %d >= %d", len(packed), len(data))
	}
	unpacked, err := decompressLZ4(packed)
	if err != nil || !bytes.Equal(unpacked, data) {
		t.Fatalf("round trip failed: %v", err)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, ok, err := db.GetMeta(ctx, "turn"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := db.SaveMeta(ctx, "turn", "7"); err != nil {
		t.Fatal(err)
	}
	if v, ok, err := db.GetMeta(ctx, "turn"); !ok || err != nil || v != "7" {
		t.Fatalf("GetMeta = %q, %v, %v", v, ok, err)
	}
}

func TestJobs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if jobs, err := db.LoadJobs(ctx); err != nil || len(jobs) != 0 {
		t.Fatalf("empty store: %v, %v", jobs, err)
	}

	want := []construction.SavedJob{
		{ID: "j-2", Owner: 1, BuildingID: "b-2", Q: 1, R: -1, Clock: construction.ClockState{
			Kind: construction.TurnClock, TurnsRemaining: 1, TotalTurns: 3,
		}},
		{ID: "j-1", Owner: 0, BuildingID: "b-1", Clock: construction.ClockState{
			Kind: construction.RealTimeClock, Remaining: 4 * time.Second, Total: 10 * time.Second,
		}},
	}
	if err := db.SaveJobs(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("loaded %d jobs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("job %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if err := db.SaveJobs(ctx, want[1:]); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.LoadJobs(ctx); len(got) != 1 || got[0].ID != "j-1" {
		t.Fatalf("save should replace stored jobs, got %+v", got)
	}
}
