// Package persistence stores the hex world in SQLite. It is the loader that
// populates a gamemap.Grid before the territory core starts.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/gravitas-games/hexrts/internal/gamemap"
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/pkg/models"
)

// ErrNoSnapshot is returned when the store holds no snapshot.
var ErrNoSnapshot = errors.New("no snapshot stored")

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn   *sqlx.DB
	logger *slog.Logger
}

// Open opens or creates a SQLite database at the given path.
func Open(path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, logger: logger}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tiles (
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		terrain TEXT NOT NULL,
		owner INTEGER NOT NULL,
		resources_json TEXT NOT NULL,
		building_json TEXT,
		PRIMARY KEY (q, r)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn INTEGER NOT NULL,
		saved_at INTEGER NOT NULL,
		tiles INTEGER NOT NULL,
		data BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		owner INTEGER NOT NULL,
		building_id TEXT NOT NULL,
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		position INTEGER NOT NULL,
		clock_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tiles_owner ON tiles(owner);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// TileRecord is the stored form of one tile.
type TileRecord struct {
	Q             int            `db:"q" json:"q"`
	R             int            `db:"r" json:"r"`
	Terrain       string         `db:"terrain" json:"terrain"`
	Owner         int            `db:"owner" json:"owner"`
	ResourcesJSON string         `db:"resources_json" json:"resources"`
	BuildingJSON  sql.NullString `db:"building_json" json:"-"`
	Building      string         `db:"-" json:"building,omitempty"`
}

// Record converts a tile to its stored form.
func Record(t *gamemap.Tile) (TileRecord, error) {
	res := make(map[string]gamemap.Deposit)
	for rt, d := range t.Resources() {
		res[rt.String()] = d
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		return TileRecord{}, err
	}
	c := t.Coord()
	rec := TileRecord{
		Q:             c.Q,
		R:             c.R,
		Terrain:       t.Terrain.String(),
		Owner:         t.Owner(),
		ResourcesJSON: string(resJSON),
	}
	if b := t.OccupyingBuilding(); b != nil {
		bJSON, err := json.Marshal(b)
		if err != nil {
			return TileRecord{}, err
		}
		rec.BuildingJSON = sql.NullString{String: string(bJSON), Valid: true}
		rec.Building = string(bJSON)
	}
	return rec, nil
}

// Tile rebuilds a tile from its stored form. The tile is not attached to a
// grid, so setting its owner notifies nobody.
func (rec TileRecord) Tile() (*gamemap.Tile, error) {
	terrain, err := gamemap.ParseTerrain(rec.Terrain)
	if err != nil {
		return nil, fmt.Errorf("tile %d,%d: %w", rec.Q, rec.R, err)
	}
	t := gamemap.NewTile(hex.Axial{Q: rec.Q, R: rec.R}, terrain)
	t.SetOwner(rec.Owner)

	var raw map[string]gamemap.Deposit
	if err := json.Unmarshal([]byte(rec.ResourcesJSON), &raw); err != nil {
		return nil, fmt.Errorf("tile %d,%d resources: %w", rec.Q, rec.R, err)
	}
	res := make(map[gamemap.ResourceType]gamemap.Deposit, len(raw))
	for name, d := range raw {
		rt, err := gamemap.ParseResource(name)
		if err != nil {
			return nil, fmt.Errorf("tile %d,%d: %w", rec.Q, rec.R, err)
		}
		res[rt] = d
	}
	t.RestoreResources(res)

	bJSON := rec.Building
	if rec.BuildingJSON.Valid {
		bJSON = rec.BuildingJSON.String
	}
	if bJSON != "" {
		var b models.Building
		if err := json.Unmarshal([]byte(bJSON), &b); err != nil {
			return nil, fmt.Errorf("tile %d,%d building: %w", rec.Q, rec.R, err)
		}
		t.SetOccupyingBuilding(&b)
	}
	return t, nil
}

// SaveGrid writes every tile of g (full replace).
func (db *DB) SaveGrid(ctx context.Context, g *gamemap.Grid) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tiles"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO tiles
		(q, r, terrain, owner, resources_json, building_json)
		VALUES (:q, :r, :terrain, :owner, :resources_json, :building_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	n := 0
	for t := range g.Tiles() {
		rec, err := Record(t)
		if err != nil {
			return fmt.Errorf("encode tile %v: %w", t.Coord(), err)
		}
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			return fmt.Errorf("insert tile %v: %w", t.Coord(), err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	db.logger.Info("grid saved", "tiles", n)
	return nil
}

// LoadInto adds every stored tile to g and returns how many were added.
func (db *DB) LoadInto(ctx context.Context, g *gamemap.Grid) (int, error) {
	var recs []TileRecord
	if err := db.conn.SelectContext(ctx, &recs,
		"SELECT q, r, terrain, owner, resources_json, building_json FROM tiles"); err != nil {
		return 0, fmt.Errorf("select tiles: %w", err)
	}
	for _, rec := range recs {
		t, err := rec.Tile()
		if err != nil {
			return 0, err
		}
		if err := g.Add(t); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}

// LoadGrid builds a new grid from the stored tiles. An empty store yields an
// empty grid.
func (db *DB) LoadGrid(ctx context.Context, opts ...gamemap.Option) (*gamemap.Grid, error) {
	g := gamemap.NewGrid(opts...)
	n, err := db.LoadInto(ctx, g)
	if err != nil {
		return nil, err
	}
	db.logger.Info("grid loaded", "tiles", n)
	return g, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns "" and false.
func (db *DB) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
