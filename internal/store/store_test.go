package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tablecast/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSession(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateSession(ctx, &models.Session{ID: "s1", Topic: "energy"}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := s.CreateTable(ctx, &models.Table{ID: "t1", SessionID: "s1", Name: "Table 1", DeviceToken: "tok-1"}); err != nil {
		t.Fatalf("create table: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	ctx := context.Background()

	sess, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Topic != "energy" {
		t.Errorf("topic: got %s", sess.Topic)
	}
	if sess.CreatedAt.IsZero() {
		t.Error("createdAt should be set")
	}

	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTableLookupByToken(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	ctx := context.Background()

	tbl, err := s.GetTableByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if tbl.ID != "t1" || tbl.SessionID != "s1" {
		t.Errorf("unexpected table: %+v", tbl)
	}

	if _, err := s.GetTableByToken(ctx, "bogus"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown token, got %v", err)
	}
}

func TestNudgeTimestampRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	ctx := context.Background()

	scheduled := time.Date(2026, 3, 14, 10, 30, 0, 123456789, time.UTC)
	n := &models.Nudge{
		ID:          "n1",
		SessionID:   "s1",
		TableID:     "t1",
		Message:     "hello",
		Priority:    models.PriorityUrgent,
		SentAt:      time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		ScheduledAt: &scheduled,
	}
	if err := s.InsertNudge(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetNudge(ctx, "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.SentAt.Equal(n.SentAt) {
		t.Errorf("sentAt: got %v, want %v", got.SentAt, n.SentAt)
	}
	if got.ScheduledAt == nil || !got.ScheduledAt.Equal(scheduled) {
		t.Errorf("scheduledAt: got %v, want %v", got.ScheduledAt, scheduled)
	}
	if got.DeliveredAt != nil || got.OpenedAt != nil || got.AcknowledgedAt != nil {
		t.Error("unset timestamps should round-trip as nil")
	}
	if got.Priority != models.PriorityUrgent {
		t.Errorf("priority: got %s", got.Priority)
	}
}

func TestMarkNudgeDelivered_RowLevelIdempotence(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	ctx := context.Background()

	n := &models.Nudge{ID: "n1", SessionID: "s1", TableID: "t1", Message: "m", Priority: models.PriorityNormal, SentAt: time.Now()}
	if err := s.InsertNudge(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first := time.Date(2026, 3, 14, 10, 0, 1, 0, time.UTC)
	updated, err := s.MarkNudgeDelivered(ctx, "n1", first)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if !updated {
		t.Fatal("first delivery should update the row")
	}

	updated, err = s.MarkNudgeDelivered(ctx, "n1", first.Add(time.Minute))
	if err != nil {
		t.Fatalf("second mark delivered: %v", err)
	}
	if updated {
		t.Error("second delivery should not update the row")
	}

	got, err := s.GetNudge(ctx, "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.DeliveredAt.Equal(first) {
		t.Errorf("deliveredAt overwritten: got %v, want %v", got.DeliveredAt, first)
	}
}

func TestAcknowledgeNudge_FirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	ctx := context.Background()

	n := &models.Nudge{ID: "n1", SessionID: "s1", TableID: "t1", Message: "m", Priority: models.PriorityNormal, SentAt: time.Now()}
	if err := s.InsertNudge(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first := time.Date(2026, 3, 14, 10, 0, 1, 0, time.UTC)
	if _, err := s.AcknowledgeNudge(ctx, "n1", first); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if _, err := s.AcknowledgeNudge(ctx, "n1", first.Add(time.Hour)); err != nil {
		t.Fatalf("second ack: %v", err)
	}

	got, err := s.GetNudge(ctx, "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.AcknowledgedAt.Equal(first) || !got.OpenedAt.Equal(first) {
		t.Errorf("ack timestamps changed: opened=%v acked=%v want %v", got.OpenedAt, got.AcknowledgedAt, first)
	}

	// Delivery after acknowledgment is a no-op.
	updated, err := s.MarkNudgeDelivered(ctx, "n1", first.Add(time.Hour))
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if updated {
		t.Error("delivery after acknowledgment should not update the row")
	}
}

func TestListDueNudges_FiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	acked := now.Add(-time.Minute)

	rows := []*models.Nudge{
		{ID: "n-late", SessionID: "s1", TableID: "t1", Message: "late", Priority: models.PriorityNormal, SentAt: now.Add(-1 * time.Minute)},
		{ID: "n-early", SessionID: "s1", TableID: "t1", Message: "early", Priority: models.PriorityNormal, SentAt: now.Add(-5 * time.Minute)},
		{ID: "n-future", SessionID: "s1", TableID: "t1", Message: "future", Priority: models.PriorityNormal, SentAt: now, ScheduledAt: &future},
		{ID: "n-acked", SessionID: "s1", TableID: "t1", Message: "acked", Priority: models.PriorityNormal, SentAt: now.Add(-10 * time.Minute), AcknowledgedAt: &acked},
		{ID: "n-session", SessionID: "s1", Message: "session-wide", Priority: models.PriorityNormal, SentAt: now.Add(-3 * time.Minute)},
		{ID: "n-other", SessionID: "s1", TableID: "t2", Message: "other table", Priority: models.PriorityNormal, SentAt: now},
	}
	for _, n := range rows {
		if err := s.InsertNudge(ctx, n); err != nil {
			t.Fatalf("insert %s: %v", n.ID, err)
		}
	}

	due, err := s.ListDueNudges(ctx, "s1", "t1", now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}

	var ids []string
	for _, n := range due {
		ids = append(ids, n.ID)
	}
	want := []string{"n-early", "n-session", "n-late"}
	if len(ids) != len(want) {
		t.Fatalf("due nudges: got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("due order: got %v, want %v", ids, want)
		}
	}
}

func TestSegmentsAndRecentTranscripts(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	ctx := context.Background()

	for i, text := range []string{"first", "", "third", "fourth"} {
		seg := &models.SegmentRecord{
			ID:         "seg-" + string(rune('a'+i)),
			TableID:    "t1",
			Seq:        uint64(i + 1),
			SizeBytes:  2048,
			Transcript: text,
		}
		if err := s.InsertSegment(ctx, seg); err != nil {
			t.Fatalf("insert segment %d: %v", i, err)
		}
	}

	got, err := s.RecentTranscripts(ctx, "t1", 2)
	if err != nil {
		t.Fatalf("recent transcripts: %v", err)
	}
	if len(got) != 2 || got[0] != "third" || got[1] != "fourth" {
		t.Errorf("expected [third fourth], got %v", got)
	}
}
