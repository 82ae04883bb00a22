// Package store manages persistence backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store manages session, nudge and playbook persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			name TEXT NOT NULL,
			device_token TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tables_session ON tables(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tables_token ON tables(device_token)`,
		`CREATE TABLE IF NOT EXISTS nudges (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			table_id TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			priority TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			scheduled_at TEXT,
			delivered_at TEXT,
			opened_at TEXT,
			acknowledged_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nudges_table ON nudges(table_id)`,
		`CREATE INDEX IF NOT EXISTS idx_nudges_session ON nudges(session_id)`,
		`CREATE TABLE IF NOT EXISTS playbooks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playbook_steps (
			playbook_id TEXT NOT NULL REFERENCES playbooks(id),
			step_index INTEGER NOT NULL,
			offset_minutes INTEGER NOT NULL,
			message TEXT NOT NULL,
			priority TEXT NOT NULL,
			PRIMARY KEY (playbook_id, step_index)
		)`,
		`CREATE TABLE IF NOT EXISTS playbook_runs (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			playbook_id TEXT NOT NULL,
			started_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS segments (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			size_bytes INTEGER NOT NULL,
			transcript TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_segments_table ON segments(table_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// timeFormat is fixed-width so stored timestamps compare correctly as
// strings in SQL (RFC3339Nano trims trailing zeros and does not).
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func scanNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
