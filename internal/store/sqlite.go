// Package store keeps a small SQLite registry of completed analysis runs
// for the status command. The checkpoint log, not this registry, is the
// source of truth for resume.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run is one completed invocation of the analyze command.
type Run struct {
	ID               string    `json:"id"`
	InputPath        string    `json:"input_path"`
	Total            int       `json:"total"`
	AlreadyProcessed int       `json:"already_processed"`
	NewlyProcessed   int       `json:"newly_processed"`
	Failed           int       `json:"failed"`
	ReportPath       string    `json:"report_path"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Store implements the run registry using modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// configures WAL mode.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "store: create dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	input_path        TEXT NOT NULL,
	total             INTEGER NOT NULL,
	already_processed INTEGER NOT NULL,
	newly_processed   INTEGER NOT NULL,
	failed            INTEGER NOT NULL,
	report_path       TEXT NOT NULL DEFAULT '',
	started_at        DATETIME NOT NULL,
	finished_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// RecordRun inserts a completed run, assigning an ID if none is set.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, input_path, total, already_processed, newly_processed, failed, report_path, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.Total, run.AlreadyProcessed, run.NewlyProcessed,
		run.Failed, run.ReportPath, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "store: record run %s", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input_path, total, already_processed, newly_processed, failed, report_path, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.InputPath, &r.Total, &r.AlreadyProcessed,
			&r.NewlyProcessed, &r.Failed, &r.ReportPath, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate runs")
	}
	return runs, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
