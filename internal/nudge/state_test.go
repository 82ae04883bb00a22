package nudge

import (
	"testing"
	"time"

	"tablecast/internal/models"
)

var baseTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newNudge() *models.Nudge {
	return &models.Nudge{
		ID:        "n1",
		SessionID: "s1",
		TableID:   "t1",
		Message:   "wrap up",
		Priority:  models.PriorityNormal,
		SentAt:    baseTime,
	}
}

func TestStateOf_Pending(t *testing.T) {
	n := newNudge()
	if got := StateOf(n, baseTime); got != StatePending {
		t.Errorf("expected StatePending, got %v", got)
	}
}

func TestStateOf_ScheduledUntilDue(t *testing.T) {
	n := newNudge()
	due := baseTime.Add(5 * time.Minute)
	n.ScheduledAt = &due

	if got := StateOf(n, baseTime); got != StateScheduled {
		t.Errorf("before due: expected StateScheduled, got %v", got)
	}
	if Due(n, baseTime) {
		t.Error("scheduled nudge must not be due before its time")
	}
	if got := StateOf(n, due); got != StatePending {
		t.Errorf("at due time: expected StatePending, got %v", got)
	}
	if !Due(n, due.Add(time.Second)) {
		t.Error("scheduled nudge must be due after its time")
	}
}

func TestStateOf_DeliveredAndAcknowledged(t *testing.T) {
	n := newNudge()

	if !MarkDelivered(n, baseTime.Add(time.Second)) {
		t.Fatal("first delivery should set deliveredAt")
	}
	if got := StateOf(n, baseTime.Add(time.Second)); got != StateDelivered {
		t.Errorf("expected StateDelivered, got %v", got)
	}

	if !Acknowledge(n, baseTime.Add(2*time.Second)) {
		t.Fatal("first acknowledgment should set acknowledgedAt")
	}
	if got := StateOf(n, baseTime.Add(2*time.Second)); got != StateAcknowledged {
		t.Errorf("expected StateAcknowledged, got %v", got)
	}
	if !StateAcknowledged.IsTerminal() {
		t.Error("acknowledged must be terminal")
	}
}

func TestMarkDelivered_Idempotent(t *testing.T) {
	n := newNudge()
	first := baseTime.Add(time.Second)

	if !MarkDelivered(n, first) {
		t.Fatal("first delivery should succeed")
	}
	if MarkDelivered(n, first.Add(time.Minute)) {
		t.Error("second delivery should be a no-op")
	}
	if !n.DeliveredAt.Equal(first) {
		t.Errorf("deliveredAt overwritten: got %v, want %v", n.DeliveredAt, first)
	}
}

func TestAcknowledge_FirstWriteWins(t *testing.T) {
	n := newNudge()
	first := baseTime.Add(time.Second)

	if !Acknowledge(n, first) {
		t.Fatal("first acknowledgment should succeed")
	}
	if Acknowledge(n, first.Add(time.Minute)) {
		t.Error("second acknowledgment should be a no-op")
	}
	if !n.AcknowledgedAt.Equal(first) {
		t.Errorf("acknowledgedAt changed: got %v, want %v", n.AcknowledgedAt, first)
	}
	if !n.OpenedAt.Equal(first) {
		t.Errorf("openedAt changed: got %v, want %v", n.OpenedAt, first)
	}
}

func TestAcknowledge_SetsOpenedTogether(t *testing.T) {
	n := newNudge()
	at := baseTime.Add(time.Second)

	Acknowledge(n, at)

	if n.OpenedAt == nil || n.AcknowledgedAt == nil {
		t.Fatal("openedAt and acknowledgedAt must be set together")
	}
	if !n.OpenedAt.Equal(*n.AcknowledgedAt) {
		t.Error("openedAt and acknowledgedAt should carry the same timestamp")
	}
}

func TestMarkDelivered_AfterAcknowledgeIsNoOp(t *testing.T) {
	n := newNudge()
	Acknowledge(n, baseTime)

	if MarkDelivered(n, baseTime.Add(time.Second)) {
		t.Error("delivery after acknowledgment should be a no-op")
	}
	if n.DeliveredAt != nil {
		t.Error("deliveredAt should remain unset after terminal state")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateScheduled, "SCHEDULED"},
		{StatePending, "PENDING"},
		{StateDelivered, "DELIVERED"},
		{StateAcknowledged, "ACKNOWLEDGED"},
		{State(42), "UNKNOWN(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
