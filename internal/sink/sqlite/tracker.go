package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const trackerSchema = `
CREATE TABLE IF NOT EXISTS etl_run_tracking (
    id TEXT NOT NULL,
    site TEXT PRIMARY KEY,
    last_run_time TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// Tracker persists per-site last-run checkpoints for the polling loop.
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a Tracker over an open database handle.
func NewTracker(db *sql.DB) *Tracker { return &Tracker{db: db} }

// Init ensures the tracking table exists. Never drops existing checkpoints.
func (t *Tracker) Init(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, trackerSchema); err != nil {
		return fmt.Errorf("create run tracking table: %w", err)
	}
	return nil
}

// LastRun returns the last recorded run time for a site. ok is false when
// the site has never run.
func (t *Tracker) LastRun(ctx context.Context, site string) (time.Time, bool, error) {
	var raw string
	err := t.db.QueryRowContext(ctx,
		"SELECT last_run_time FROM etl_run_tracking WHERE site = ?", site).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last run for %s: %w", site, err)
	}
	ts, err := time.Parse(sqlTimeFormat, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last run %q for %s: %w", raw, site, err)
	}
	return ts.UTC(), true, nil
}

// SetLastRun upserts the checkpoint for a site.
func (t *Tracker) SetLastRun(ctx context.Context, site string, runTime time.Time) error {
	now := time.Now().UTC().Format(sqlTimeFormat)
	_, err := t.db.ExecContext(ctx, `
INSERT INTO etl_run_tracking (id, site, last_run_time, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(site) DO UPDATE SET last_run_time = excluded.last_run_time, updated_at = excluded.updated_at`,
		uuid.NewString(), site, runTime.UTC().Format(sqlTimeFormat), now, now)
	if err != nil {
		return fmt.Errorf("update last run for %s: %w", site, err)
	}
	return nil
}
