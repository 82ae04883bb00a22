package nudge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tablecast/internal/events"
	"tablecast/internal/models"
	"tablecast/internal/observability/logging"
	"tablecast/internal/observability/metrics"
	"tablecast/internal/ratelimit"
	"tablecast/internal/store"
)

// ErrRateLimited is returned when a nudge creation is rejected by a
// cooldown window. The rejection performs no mutation.
var ErrRateLimited = errors.New("nudge rate limited")

// Tracker owns nudge creation and lifecycle transitions. Every transition
// is monotonic and single-row, so no multi-row coordination is needed.
type Tracker struct {
	store     *store.Store
	limiter   *ratelimit.Limiter
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	directWindow    time.Duration
	broadcastWindow time.Duration

	now func() time.Time
}

// NewTracker creates a Tracker with the given cooldown windows.
func NewTracker(st *store.Store, limiter *ratelimit.Limiter, publisher *events.Publisher, directWindow, broadcastWindow time.Duration) *Tracker {
	return &Tracker{
		store:           st,
		limiter:         limiter,
		publisher:       publisher,
		metrics:         metrics.DefaultMetrics,
		logger:          logging.WithComponent("nudge-tracker"),
		directWindow:    directWindow,
		broadcastWindow: broadcastWindow,
		now:             time.Now,
	}
}

// CreateForTable creates a direct nudge addressed to a single table.
// Rejected with ErrRateLimited inside the table's cooldown window.
func (t *Tracker) CreateForTable(ctx context.Context, tableID, message string, priority models.Priority) (*models.Nudge, error) {
	tbl, err := t.store.GetTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("resolve table: %w", err)
	}

	key := ratelimit.TableKey(tableID)
	if !t.limiter.Allow(key, t.directWindow) {
		t.metrics.NudgesRateLimited.WithLabelValues("direct").Inc()
		return nil, ErrRateLimited
	}

	n := &models.Nudge{
		ID:        uuid.NewString(),
		SessionID: tbl.SessionID,
		TableID:   tableID,
		Message:   message,
		Priority:  priority,
		SentAt:    t.now().UTC(),
	}
	if err := t.store.InsertNudge(ctx, n); err != nil {
		return nil, err
	}
	t.limiter.MarkSent(key)
	t.metrics.NudgesCreated.WithLabelValues("direct").Inc()
	t.publishLifecycle(ctx, n, "created")

	t.logger.Info().
		Str("nudgeId", n.ID).
		Str("tableId", tableID).
		Str("priority", string(priority)).
		Msg("Nudge created")
	return n, nil
}

// CreateForSession creates a direct session-wide nudge: one row, visible to
// every table in the session on poll. Uses the session's own 30s cooldown.
func (t *Tracker) CreateForSession(ctx context.Context, sessionID, message string, priority models.Priority) (*models.Nudge, error) {
	if _, err := t.store.GetSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	key := ratelimit.SessionKey(sessionID)
	if !t.limiter.Allow(key, t.directWindow) {
		t.metrics.NudgesRateLimited.WithLabelValues("direct").Inc()
		return nil, ErrRateLimited
	}

	n := &models.Nudge{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Message:   message,
		Priority:  priority,
		SentAt:    t.now().UTC(),
	}
	if err := t.store.InsertNudge(ctx, n); err != nil {
		return nil, err
	}
	t.limiter.MarkSent(key)
	t.metrics.NudgesCreated.WithLabelValues("direct").Inc()
	t.publishLifecycle(ctx, n, "created")
	return n, nil
}

// Broadcast fans one logical nudge out to every table in a session. The
// cooldown key is independent of the per-table direct keys.
func (t *Tracker) Broadcast(ctx context.Context, sessionID, message string, priority models.Priority) ([]*models.Nudge, error) {
	if _, err := t.store.GetSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	key := ratelimit.BroadcastKey(sessionID)
	if !t.limiter.Allow(key, t.broadcastWindow) {
		t.metrics.NudgesRateLimited.WithLabelValues("broadcast").Inc()
		return nil, ErrRateLimited
	}

	tables, err := t.store.ListTables(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sentAt := t.now().UTC()
	created := make([]*models.Nudge, 0, len(tables))
	for _, tbl := range tables {
		n := &models.Nudge{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			TableID:   tbl.ID,
			Message:   message,
			Priority:  priority,
			SentAt:    sentAt,
		}
		if err := t.store.InsertNudge(ctx, n); err != nil {
			return nil, err
		}
		t.metrics.NudgesCreated.WithLabelValues("broadcast").Inc()
		t.publishLifecycle(ctx, n, "created")
		created = append(created, n)
	}
	t.limiter.MarkSent(key)

	t.logger.Info().
		Str("sessionId", sessionID).
		Int("tables", len(created)).
		Msg("Broadcast nudge created")
	return created, nil
}

// CreateScheduled persists a pre-built scheduled nudge. Used by the
// playbook scheduler; scheduled nudges bypass the cooldown windows.
func (t *Tracker) CreateScheduled(ctx context.Context, n *models.Nudge) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.SentAt.IsZero() {
		n.SentAt = t.now().UTC()
	}
	if err := t.store.InsertNudge(ctx, n); err != nil {
		return err
	}
	t.metrics.NudgesCreated.WithLabelValues("scheduled").Inc()
	return nil
}

// PollForDevice returns the nudges visible to a device polling for its
// table, oldest first, and marks each one Delivered as a side effect of
// the read. The Delivered transition is idempotent.
func (t *Tracker) PollForDevice(ctx context.Context, tbl *models.Table) ([]*models.Nudge, error) {
	now := t.now().UTC()
	due, err := t.store.ListDueNudges(ctx, tbl.SessionID, tbl.ID, now)
	if err != nil {
		return nil, err
	}

	for _, n := range due {
		updated, err := t.store.MarkNudgeDelivered(ctx, n.ID, now)
		if err != nil {
			return nil, err
		}
		if updated {
			MarkDelivered(n, now)
			t.metrics.NudgesDelivered.Inc()
			t.publishLifecycle(ctx, n, "delivered")
		}
	}
	return due, nil
}

// Acknowledge marks one nudge Acknowledged (and Opened). Terminal and
// idempotent: the first acknowledgment wins, repeats change nothing.
func (t *Tracker) Acknowledge(ctx context.Context, nudgeID string) (*models.Nudge, error) {
	now := t.now().UTC()
	updated, err := t.store.AcknowledgeNudge(ctx, nudgeID, now)
	if err != nil {
		return nil, err
	}

	n, err := t.store.GetNudge(ctx, nudgeID)
	if err != nil {
		return nil, err
	}
	if updated {
		t.metrics.NudgesAcked.Inc()
		t.publishLifecycle(ctx, n, "acknowledged")
	}
	return n, nil
}

// StatsForTable returns aggregate delivery counts for a table.
func (t *Tracker) StatsForTable(ctx context.Context, tableID string) (*models.NudgeStats, error) {
	if _, err := t.store.GetTable(ctx, tableID); err != nil {
		return nil, fmt.Errorf("resolve table: %w", err)
	}
	return t.store.NudgeStatsForTable(ctx, tableID)
}

// StatsForSession returns aggregate delivery counts across a session.
func (t *Tracker) StatsForSession(ctx context.Context, sessionID string) (*models.NudgeStats, error) {
	if _, err := t.store.GetSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return t.store.NudgeStatsForSession(ctx, sessionID)
}

func (t *Tracker) publishLifecycle(ctx context.Context, n *models.Nudge, phase string) {
	if t.publisher == nil {
		return
	}
	ev := models.NudgeEvent{
		EventType: "table.nudge." + phase,
		NudgeID:   n.ID,
		SessionID: n.SessionID,
		TableID:   n.TableID,
		Phase:     phase,
		Timestamp: t.now().UnixMilli(),
	}
	if err := t.publisher.PublishNudge(ctx, n.SessionID, ev); err != nil {
		t.logger.Error().Err(err).Str("nudgeId", n.ID).Str("phase", phase).Msg("Failed to publish nudge event")
	}
}
