package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tablecast/internal/models"
)

// CreatePlaybook inserts a playbook and its ordered steps.
func (s *Store) CreatePlaybook(ctx context.Context, pb *models.Playbook) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin playbook tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO playbooks (id, name, duration_minutes) VALUES (?, ?, ?)`,
		pb.ID, pb.Name, pb.DurationMinutes,
	)
	if err != nil {
		return fmt.Errorf("insert playbook: %w", err)
	}
	for i, step := range pb.Steps {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO playbook_steps (playbook_id, step_index, offset_minutes, message, priority)
			 VALUES (?, ?, ?, ?, ?)`,
			pb.ID, i, step.OffsetMinutes, step.Message, string(step.Priority),
		)
		if err != nil {
			return fmt.Errorf("insert playbook step %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetPlaybook fetches a playbook with its steps in order.
func (s *Store) GetPlaybook(ctx context.Context, id string) (*models.Playbook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, duration_minutes FROM playbooks WHERE id = ?`, id)

	var pb models.Playbook
	if err := row.Scan(&pb.ID, &pb.Name, &pb.DurationMinutes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan playbook: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT offset_minutes, message, priority FROM playbook_steps
		 WHERE playbook_id = ? ORDER BY step_index`, id)
	if err != nil {
		return nil, fmt.Errorf("list playbook steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step models.PlaybookStep
		var priority string
		if err := rows.Scan(&step.OffsetMinutes, &step.Message, &priority); err != nil {
			return nil, fmt.Errorf("scan playbook step: %w", err)
		}
		step.Priority = models.Priority(priority)
		pb.Steps = append(pb.Steps, step)
	}
	return &pb, rows.Err()
}

// InsertPlaybookRun records one playbook invocation. Runs are deliberately
// not unique per session+playbook; every invocation creates a fresh row.
func (s *Store) InsertPlaybookRun(ctx context.Context, run *models.PlaybookRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playbook_runs (id, session_id, playbook_id, started_at)
		 VALUES (?, ?, ?, ?)`,
		run.ID, run.SessionID, run.PlaybookID, formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert playbook run: %w", err)
	}
	return nil
}

// InsertSegment records one ingested audio segment.
func (s *Store) InsertSegment(ctx context.Context, seg *models.SegmentRecord) error {
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO segments (id, table_id, seq, size_bytes, transcript, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seg.ID, seg.TableID, seg.Seq, seg.SizeBytes, seg.Transcript, seg.Confidence, formatTime(seg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

// RecentTranscripts returns up to limit non-empty transcripts for a table,
// newest last, for rolling summarization.
func (s *Store) RecentTranscripts(ctx context.Context, tableID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT transcript FROM (
			SELECT transcript, seq FROM segments
			WHERE table_id = ? AND transcript != ''
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`,
		tableID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transcripts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		out = append(out, text)
	}
	return out, rows.Err()
}
