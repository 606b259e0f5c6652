package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gravitas-games/hexrts/internal/construction"
)

// JobRecord is the stored form of one construction job. Position keeps the
// queue order across owners.
type JobRecord struct {
	ID         string `db:"id"`
	Owner      int    `db:"owner"`
	BuildingID string `db:"building_id"`
	Q          int    `db:"q"`
	R          int    `db:"r"`
	Position   int    `db:"position"`
	ClockJSON  string `db:"clock_json"`
}

// SaveJobs replaces the stored construction jobs with jobs, in order.
func (db *DB) SaveJobs(ctx context.Context, jobs []construction.SavedJob) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM jobs"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO jobs
		(id, owner, building_id, q, r, position, clock_json)
		VALUES (:id, :owner, :building_id, :q, :r, :position, :clock_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, j := range jobs {
		clock, err := json.Marshal(j.Clock)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", j.ID, err)
		}
		rec := JobRecord{
			ID:         string(j.ID),
			Owner:      j.Owner,
			BuildingID: j.BuildingID,
			Q:          j.Q,
			R:          j.R,
			Position:   i,
			ClockJSON:  string(clock),
		}
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			return fmt.Errorf("insert job %s: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	db.logger.Info("jobs saved", "jobs", len(jobs))
	return nil
}

// LoadJobs returns the stored construction jobs in saved order.
func (db *DB) LoadJobs(ctx context.Context) ([]construction.SavedJob, error) {
	var recs []JobRecord
	if err := db.conn.SelectContext(ctx, &recs,
		"SELECT id, owner, building_id, q, r, position, clock_json FROM jobs ORDER BY position"); err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	jobs := make([]construction.SavedJob, 0, len(recs))
	for _, rec := range recs {
		var clock construction.ClockState
		if err := json.Unmarshal([]byte(rec.ClockJSON), &clock); err != nil {
			return nil, fmt.Errorf("job %s clock: %w", rec.ID, err)
		}
		jobs = append(jobs, construction.SavedJob{
			ID:         construction.JobID(rec.ID),
			Owner:      rec.Owner,
			BuildingID: rec.BuildingID,
			Q:          rec.Q,
			R:          rec.R,
			Clock:      clock,
		})
	}
	return jobs, nil
}
