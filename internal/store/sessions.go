package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tablecast/internal/models"
)

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, topic, created_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Topic, formatTime(sess.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession fetches a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, created_at FROM sessions WHERE id = ?`, id)

	var sess models.Session
	var createdAt string
	if err := row.Scan(&sess.ID, &sess.Topic, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	sess.CreatedAt = t
	return &sess, nil
}

// CreateTable inserts a new table endpoint for a session.
func (s *Store) CreateTable(ctx context.Context, tbl *models.Table) error {
	if tbl.CreatedAt.IsZero() {
		tbl.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tables (id, session_id, name, device_token, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		tbl.ID, tbl.SessionID, tbl.Name, tbl.DeviceToken, formatTime(tbl.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert table: %w", err)
	}
	return nil
}

// GetTable fetches a table by ID.
func (s *Store) GetTable(ctx context.Context, id string) (*models.Table, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, name, device_token, created_at FROM tables WHERE id = ?`, id)
	return scanTable(row)
}

// GetTableByToken fetches the table a device token is registered to.
func (s *Store) GetTableByToken(ctx context.Context, token string) (*models.Table, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, name, device_token, created_at FROM tables WHERE device_token = ?`, token)
	return scanTable(row)
}

// ListTables returns all tables for a session, ordered by creation time.
func (s *Store) ListTables(ctx context.Context, sessionID string) ([]*models.Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, name, device_token, created_at
		 FROM tables WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []*models.Table
	for rows.Next() {
		tbl, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tbl)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(row rowScanner) (*models.Table, error) {
	var tbl models.Table
	var createdAt string
	if err := row.Scan(&tbl.ID, &tbl.SessionID, &tbl.Name, &tbl.DeviceToken, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan table: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse table created_at: %w", err)
	}
	tbl.CreatedAt = t
	return &tbl, nil
}
