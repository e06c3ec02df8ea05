// Package history persists an audit trail of search jobs in SQLite: one row
// per started job, updated when the job reaches a terminal state. The trail
// survives server restarts, so an analyst can reconstruct what an agent
// searched for and when.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/secopshq/ngsiem-mcp/internal/search"
)

// ErrNotFound is returned when a requested entry doesn't exist.
var ErrNotFound = errors.New("history entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS searches (
    job_id      TEXT PRIMARY KEY,
    repository  TEXT NOT NULL,
    query       TEXT NOT NULL,
    state       TEXT NOT NULL,
    event_count INTEGER NOT NULL DEFAULT 0,
    poll_count  INTEGER NOT NULL DEFAULT 0,
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_searches_started_at ON searches(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_searches_repository ON searches(repository);
`

// Entry is one recorded search job.
type Entry struct {
	JobID      string     `json:"job_id"`
	Repository string     `json:"repository"`
	Query      string     `json:"query"`
	State      string     `json:"state"`
	EventCount int        `json:"event_count"`
	PollCount  int        `json:"poll_count"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Store is a SQLite-backed search audit trail. It implements
// search.Recorder; recording failures are logged, never propagated, so a
// broken audit store cannot take searches down with it.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates or opens the history database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// WAL mode for concurrent readers; single writer suits SQLite.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordStart inserts a row for a freshly started job.
func (s *Store) RecordStart(ctx context.Context, snap search.Snapshot) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO searches (job_id, repository, query, state, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.Repository, snap.Query, string(snap.State), snap.StartedAt.UTC())
	if err != nil {
		s.log.Error().Err(err).Str("job_id", snap.ID).Msg("failed to record search start")
	}
}

// RecordFinish updates a job's row once it reaches a terminal state.
func (s *Store) RecordFinish(ctx context.Context, snap search.Snapshot, eventCount int) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE searches
		 SET state = ?, event_count = ?, poll_count = ?, finished_at = ?
		 WHERE job_id = ?`,
		string(snap.State), eventCount, snap.PollCount, time.Now().UTC(), snap.ID)
	if err != nil {
		s.log.Error().Err(err).Str("job_id", snap.ID).Msg("failed to record search finish")
	}
}

// Get returns the entry for one job id.
func (s *Store) Get(ctx context.Context, jobID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, repository, query, state, event_count, poll_count, started_at, finished_at
		 FROM searches WHERE job_id = ?`, jobID)

	var e Entry
	var finished sql.NullTime
	err := row.Scan(&e.JobID, &e.Repository, &e.Query, &e.State,
		&e.EventCount, &e.PollCount, &e.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		e.FinishedAt = &finished.Time
	}
	return &e, nil
}

// Recent lists the most recently started searches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, repository, query, state, event_count, poll_count, started_at, finished_at
		 FROM searches ORDER BY started_at DESC, job_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var finished sql.NullTime
		if err := rows.Scan(&e.JobID, &e.Repository, &e.Query, &e.State,
			&e.EventCount, &e.PollCount, &e.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			e.FinishedAt = &finished.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
