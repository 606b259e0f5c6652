package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4"

	"github.com/gravitas-games/hexrts/internal/gamemap"
)

// Snapshot is a point-in-time copy of the grid, stored compressed.
type Snapshot struct {
	Turn    int          `json:"turn"`
	SavedAt time.Time    `json:"saved_at"`
	Tiles   []TileRecord `json:"tiles"`
}

type snapshotRow struct {
	ID      int64  `db:"id"`
	Turn    int    `db:"turn"`
	SavedAt int64  `db:"saved_at"`
	Count   int    `db:"tiles"`
	Data    []byte `db:"data"`
}

// TakeSnapshot copies the current state of g.
func TakeSnapshot(turn int, g *gamemap.Grid) (*Snapshot, error) {
	s := &Snapshot{Turn: turn, SavedAt: time.Now().UTC()}
	for t := range g.Tiles() {
		rec, err := Record(t)
		if err != nil {
			return nil, fmt.Errorf("encode tile %v: %w", t.Coord(), err)
		}
		s.Tiles = append(s.Tiles, rec)
	}
	return s, nil
}

// Grid rebuilds a grid from the snapshot.
func (s *Snapshot) Grid(opts ...gamemap.Option) (*gamemap.Grid, error) {
	g := gamemap.NewGrid(opts...)
	for _, rec := range s.Tiles {
		t, err := rec.Tile()
		if err != nil {
			return nil, err
		}
		if err := g.Add(t); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// SaveSnapshot stores a compressed snapshot of g at turn.
func (db *DB) SaveSnapshot(ctx context.Context, turn int, g *gamemap.Grid) error {
	s, err := TakeSnapshot(turn, g)
	if err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	compressed, err := compressLZ4(data)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		"INSERT INTO snapshots (turn, saved_at, tiles, data) VALUES (?, ?, ?, ?)",
		turn, s.SavedAt.UnixMilli(), len(s.Tiles), compressed,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	db.logger.Info("snapshot saved", "turn", turn, "tiles", len(s.Tiles), "raw", len(data), "stored", len(compressed))
	return nil
}

// LatestSnapshot returns the most recently stored snapshot, or ErrNoSnapshot.
func (db *DB) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var row snapshotRow
	err := db.conn.GetContext(ctx, &row,
		"SELECT id, turn, saved_at, tiles, data FROM snapshots ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	data, err := decompressLZ4(row.Data)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot %d: %w", row.ID, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", row.ID, err)
	}
	return &s, nil
}

// SnapshotCount returns how many snapshots are stored.
func (db *DB) SnapshotCount(ctx context.Context) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM snapshots")
	return n, err
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
