package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tablecast/internal/models"
)

// InsertNudge persists a new nudge row.
func (s *Store) InsertNudge(ctx context.Context, n *models.Nudge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nudges (
			id, session_id, table_id, message, priority,
			sent_at, scheduled_at, delivered_at, opened_at, acknowledged_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.SessionID, n.TableID, n.Message, string(n.Priority),
		formatTime(n.SentAt),
		nullableTime(n.ScheduledAt),
		nullableTime(n.DeliveredAt),
		nullableTime(n.OpenedAt),
		nullableTime(n.AcknowledgedAt),
	)
	if err != nil {
		return fmt.Errorf("insert nudge: %w", err)
	}
	return nil
}

// GetNudge fetches a nudge by ID.
func (s *Store) GetNudge(ctx context.Context, id string) (*models.Nudge, error) {
	row := s.db.QueryRowContext(ctx, selectNudge+` WHERE id = ?`, id)
	return scanNudge(row)
}

// ListDueNudges returns nudges visible to a device polling for the given
// table at the given instant: table-addressed and session-wide rows whose
// schedule is due and that have not been acknowledged, oldest first.
func (s *Store) ListDueNudges(ctx context.Context, sessionID, tableID string, now time.Time) ([]*models.Nudge, error) {
	rows, err := s.db.QueryContext(ctx,
		selectNudge+` WHERE (table_id = ? OR (table_id = '' AND session_id = ?))
			AND acknowledged_at IS NULL
			AND (scheduled_at IS NULL OR scheduled_at <= ?)
		ORDER BY sent_at, id`,
		tableID, sessionID, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("list due nudges: %w", err)
	}
	return collectNudges(rows)
}

// ListNudgesForTable returns every nudge addressed to a table.
func (s *Store) ListNudgesForTable(ctx context.Context, tableID string) ([]*models.Nudge, error) {
	rows, err := s.db.QueryContext(ctx,
		selectNudge+` WHERE table_id = ? ORDER BY sent_at, id`, tableID)
	if err != nil {
		return nil, fmt.Errorf("list table nudges: %w", err)
	}
	return collectNudges(rows)
}

// ListNudgesForSession returns every nudge within a session, including
// table-addressed fan-out rows.
func (s *Store) ListNudgesForSession(ctx context.Context, sessionID string) ([]*models.Nudge, error) {
	rows, err := s.db.QueryContext(ctx,
		selectNudge+` WHERE session_id = ? ORDER BY sent_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session nudges: %w", err)
	}
	return collectNudges(rows)
}

// MarkNudgeDelivered sets delivered_at if it is not already set. The WHERE
// clause makes the transition idempotent at the row level; no transaction
// is needed because the update is monotonic and single-row.
func (s *Store) MarkNudgeDelivered(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE nudges SET delivered_at = ?
		 WHERE id = ? AND delivered_at IS NULL AND acknowledged_at IS NULL`,
		formatTime(now), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark delivered rows: %w", err)
	}
	return affected > 0, nil
}

// AcknowledgeNudge sets opened_at and acknowledged_at together if the nudge
// has not already been acknowledged. The first write wins.
func (s *Store) AcknowledgeNudge(ctx context.Context, id string, now time.Time) (bool, error) {
	ts := formatTime(now)
	res, err := s.db.ExecContext(ctx,
		`UPDATE nudges SET opened_at = COALESCE(opened_at, ?), acknowledged_at = ?
		 WHERE id = ? AND acknowledged_at IS NULL`,
		ts, ts, id,
	)
	if err != nil {
		return false, fmt.Errorf("acknowledge nudge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acknowledge rows: %w", err)
	}
	return affected > 0, nil
}

// NudgeStatsForTable aggregates delivery counts for a table by scanning rows.
func (s *Store) NudgeStatsForTable(ctx context.Context, tableID string) (*models.NudgeStats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(delivered_at), COUNT(opened_at), COUNT(acknowledged_at)
		 FROM nudges WHERE table_id = ?`, tableID)
	return scanStats(row)
}

// NudgeStatsForSession aggregates delivery counts across a session.
func (s *Store) NudgeStatsForSession(ctx context.Context, sessionID string) (*models.NudgeStats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(delivered_at), COUNT(opened_at), COUNT(acknowledged_at)
		 FROM nudges WHERE session_id = ?`, sessionID)
	return scanStats(row)
}

func scanStats(row rowScanner) (*models.NudgeStats, error) {
	var st models.NudgeStats
	if err := row.Scan(&st.Sent, &st.Delivered, &st.Opened, &st.Acknowledged); err != nil {
		return nil, fmt.Errorf("scan nudge stats: %w", err)
	}
	st.Pending = st.Sent - st.Acknowledged
	return &st, nil
}

const selectNudge = `SELECT id, session_id, table_id, message, priority,
	sent_at, scheduled_at, delivered_at, opened_at, acknowledged_at FROM nudges`

func scanNudge(row rowScanner) (*models.Nudge, error) {
	var n models.Nudge
	var priority, sentAt string
	var scheduledAt, deliveredAt, openedAt, acknowledgedAt sql.NullString
	err := row.Scan(&n.ID, &n.SessionID, &n.TableID, &n.Message, &priority,
		&sentAt, &scheduledAt, &deliveredAt, &openedAt, &acknowledgedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan nudge: %w", err)
	}
	n.Priority = models.Priority(priority)

	t, err := parseTime(sentAt)
	if err != nil {
		return nil, fmt.Errorf("parse sent_at: %w", err)
	}
	n.SentAt = t

	if n.ScheduledAt, err = scanNullableTime(scheduledAt); err != nil {
		return nil, fmt.Errorf("parse scheduled_at: %w", err)
	}
	if n.DeliveredAt, err = scanNullableTime(deliveredAt); err != nil {
		return nil, fmt.Errorf("parse delivered_at: %w", err)
	}
	if n.OpenedAt, err = scanNullableTime(openedAt); err != nil {
		return nil, fmt.Errorf("parse opened_at: %w", err)
	}
	if n.AcknowledgedAt, err = scanNullableTime(acknowledgedAt); err != nil {
		return nil, fmt.Errorf("parse acknowledged_at: %w", err)
	}
	return &n, nil
}

func collectNudges(rows *sql.Rows) ([]*models.Nudge, error) {
	defer rows.Close()
	var out []*models.Nudge
	for rows.Next() {
		n, err := scanNudge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
