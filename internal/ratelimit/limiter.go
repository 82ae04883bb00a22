// Package ratelimit enforces per-target cooldown windows for nudge creation.
package ratelimit

import (
	"sync"
	"time"
)

// Store abstracts the last-sent timestamp map so the limiter can run on an
// in-memory map for a single instance or a shared cache when scaling out.
type Store interface {
	// LastSent returns the recorded send time for a key, if any.
	LastSent(key string) (time.Time, bool)
	// MarkSent records the send time for a key.
	MarkSent(key string, at time.Time)
}

// MemoryStore is a process-local, mutex-guarded Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

func (m *MemoryStore) LastSent(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.entries[key]
	return t, ok
}

func (m *MemoryStore) MarkSent(key string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = at
}

// Limiter checks cooldown windows against a Store. A rejected check never
// mutates the store, so it consumes no part of the window.
type Limiter struct {
	store Store
	now   func() time.Time
}

// New creates a Limiter backed by the given store.
func New(store Store) *Limiter {
	return NewWithClock(store, time.Now)
}

// NewWithClock creates a Limiter with an injected clock.
func NewWithClock(store Store, now func() time.Time) *Limiter {
	return &Limiter{store: store, now: now}
}

// Allow reports whether a send for key is permitted given the cooldown
// window. It performs no mutation; call MarkSent after the send succeeds.
func (l *Limiter) Allow(key string, window time.Duration) bool {
	last, ok := l.store.LastSent(key)
	if !ok {
		return true
	}
	return l.now().Sub(last) >= window
}

// MarkSent records now() as the last send time for key.
func (l *Limiter) MarkSent(key string) {
	l.store.MarkSent(key, l.now())
}

// TableKey is the cooldown key for a direct nudge to a table.
func TableKey(tableID string) string {
	return "table:" + tableID
}

// SessionKey is the cooldown key for a direct session-wide nudge.
func SessionKey(sessionID string) string {
	return "session:" + sessionID
}

// BroadcastKey is the cooldown key for a broadcast, independent of the
// per-table keys: a broadcast is one logical send even though it fans out.
func BroadcastKey(sessionID string) string {
	return "broadcast:" + sessionID
}
