package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter() (*Limiter, *time.Time) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	l := New(NewMemoryStore())
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllow_FirstSendAlwaysAllowed(t *testing.T) {
	l, _ := newTestLimiter()

	if !l.Allow(TableKey("t1"), 30*time.Second) {
		t.Error("first send should be allowed")
	}
}

func TestAllow_WithinWindowRejected(t *testing.T) {
	l, now := newTestLimiter()

	l.MarkSent(TableKey("t1"))

	*now = now.Add(29 * time.Second)
	if l.Allow(TableKey("t1"), 30*time.Second) {
		t.Error("send within window should be rejected")
	}

	*now = now.Add(1 * time.Second)
	if !l.Allow(TableKey("t1"), 30*time.Second) {
		t.Error("send at window boundary should be allowed")
	}
}

func TestAllow_RejectionDoesNotConsumeWindow(t *testing.T) {
	l, now := newTestLimiter()

	l.MarkSent(TableKey("t1"))

	// Repeated rejected checks must not push the window forward.
	for i := 0; i < 5; i++ {
		*now = now.Add(5 * time.Second)
		l.Allow(TableKey("t1"), 30*time.Second)
	}

	*now = now.Add(5 * time.Second) // 30s after the original send
	if !l.Allow(TableKey("t1"), 30*time.Second) {
		t.Error("window should expire 30s after the original send despite rejected checks")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()

	l.MarkSent(TableKey("t1"))

	if l.Allow(TableKey("t1"), 30*time.Second) {
		t.Error("t1 should be in cooldown")
	}
	if !l.Allow(TableKey("t2"), 30*time.Second) {
		t.Error("t2 should be unaffected by t1's cooldown")
	}
	if !l.Allow(BroadcastKey("s1"), 60*time.Second) {
		t.Error("broadcast key should be independent of table keys")
	}
}

func TestAllow_BroadcastIndependentOfTableCooldown(t *testing.T) {
	l, now := newTestLimiter()

	l.MarkSent(BroadcastKey("s1"))

	*now = now.Add(45 * time.Second)
	if l.Allow(BroadcastKey("s1"), 60*time.Second) {
		t.Error("broadcast should still be in its 60s cooldown")
	}
	if !l.Allow(TableKey("t1"), 30*time.Second) {
		t.Error("direct table send should not be blocked by broadcast cooldown")
	}

	*now = now.Add(15 * time.Second)
	if !l.Allow(BroadcastKey("s1"), 60*time.Second) {
		t.Error("broadcast should be allowed after 60s")
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"table", TableKey("42"), "table:42"},
		{"session", SessionKey("abc"), "session:abc"},
		{"broadcast", BroadcastKey("abc"), "broadcast:abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}
