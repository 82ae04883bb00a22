package nudge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tablecast/internal/models"
	"tablecast/internal/observability/logging"
	"tablecast/internal/observability/metrics"
	"tablecast/internal/store"
)

// Scheduler expands a playbook's step templates into concrete scheduled
// nudges for every table in a session.
type Scheduler struct {
	store   *store.Store
	tracker *Tracker
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewScheduler creates a playbook scheduler.
func NewScheduler(st *store.Store, tracker *Tracker) *Scheduler {
	return &Scheduler{
		store:   st,
		tracker: tracker,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("playbook-scheduler"),
		now:     time.Now,
	}
}

// StartPlaybook creates one run record plus one scheduled nudge per
// step x table pair, with scheduledAt = run start + step offset.
//
// Re-invoking for the same session and playbook creates an entirely new,
// independent batch: runs are not deduplicated.
func (s *Scheduler) StartPlaybook(ctx context.Context, sessionID, playbookID string) (*models.PlaybookRun, []*models.Nudge, error) {
	pb, err := s.store.GetPlaybook(ctx, playbookID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve playbook: %w", err)
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, nil, fmt.Errorf("resolve session: %w", err)
	}
	tables, err := s.store.ListTables(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	startedAt := s.now().UTC()
	run := &models.PlaybookRun{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		PlaybookID: playbookID,
		StartedAt:  startedAt,
	}
	if err := s.store.InsertPlaybookRun(ctx, run); err != nil {
		return nil, nil, err
	}

	created := make([]*models.Nudge, 0, len(pb.Steps)*len(tables))
	for _, step := range pb.Steps {
		scheduledAt := startedAt.Add(time.Duration(step.OffsetMinutes) * time.Minute)
		for _, tbl := range tables {
			n := &models.Nudge{
				ID:          uuid.NewString(),
				SessionID:   sessionID,
				TableID:     tbl.ID,
				Message:     step.Message,
				Priority:    step.Priority,
				SentAt:      startedAt,
				ScheduledAt: &scheduledAt,
			}
			if err := s.tracker.CreateScheduled(ctx, n); err != nil {
				return nil, nil, err
			}
			created = append(created, n)
		}
	}

	s.metrics.PlaybookRuns.Inc()
	s.metrics.PlaybookNudges.Add(float64(len(created)))
	s.logger.Info().
		Str("runId", run.ID).
		Str("sessionId", sessionID).
		Str("playbookId", playbookID).
		Int("steps", len(pb.Steps)).
		Int("tables", len(tables)).
		Int("nudges", len(created)).
		Msg("Playbook run started")

	return run, created, nil
}
