// Package connection classifies backend reachability for the capture client.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tablecast/internal/observability/logging"
	"tablecast/internal/observability/metrics"
)

// State classifies the connection to the backend.
type State int

const (
	// StateConnected - probes succeed with acceptable latency.
	StateConnected State = iota
	// StateDegraded - probes succeed slowly, or have recently failed.
	StateDegraded
	// StateOffline - enough consecutive probes failed.
	StateOffline
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateDegraded:
		return "DEGRADED"
	case StateOffline:
		return "OFFLINE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Pinger probes the backend and reports round-trip latency.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Config tunes the monitor's probe cadence and classification thresholds.
type Config struct {
	ProbeInterval   time.Duration
	ProbeTimeout    time.Duration
	DegradedLatency time.Duration
	OfflineFailures int
}

// DefaultConfig returns the standard probe settings: a probe every 5s with
// a 3s hard timeout, 2s latency threshold, offline after 3 failures.
func DefaultConfig() Config {
	return Config{
		ProbeInterval:   5 * time.Second,
		ProbeTimeout:    3 * time.Second,
		DegradedLatency: 2 * time.Second,
		OfflineFailures: 3,
	}
}

// Observer receives state transitions.
type Observer func(State)

// Monitor periodically probes the backend and classifies the connection.
// Probe failures are never surfaced to callers, only reflected in state.
type Monitor struct {
	pinger  Pinger
	cfg     Config
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu        sync.Mutex
	state     State
	failures  int
	observers []Observer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a Monitor in the Connected state.
func NewMonitor(pinger Pinger, cfg Config) *Monitor {
	if cfg.ProbeInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Monitor{
		pinger:  pinger,
		cfg:     cfg,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("connection-monitor"),
		state:   StateConnected,
	}
}

// State returns the current classification.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers an observer for state transitions. Observers are
// invoked synchronously from the probe goroutine on every change.
func (m *Monitor) Subscribe(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Start launches the probe loop. The first probe fires immediately.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.ProbeInterval)
		defer ticker.Stop()

		m.Probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Probe(ctx)
			}
		}
	}()
}

// Stop cancels the probe loop and waits for it to exit. No timers remain
// after Stop returns.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Probe performs one probe and updates the classification.
func (m *Monitor) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	latency, err := m.pinger.Ping(probeCtx)
	if err != nil {
		m.metrics.RecordProbe(0, true)
		m.recordFailure(err)
		return
	}
	m.metrics.RecordProbe(latency.Seconds(), false)
	m.recordSuccess(latency)
}

func (m *Monitor) recordSuccess(latency time.Duration) {
	next := StateConnected
	if latency > m.cfg.DegradedLatency {
		next = StateDegraded
	}

	m.mu.Lock()
	m.failures = 0
	changed := m.state != next
	m.state = next
	observers := m.observers
	m.mu.Unlock()

	m.metrics.RecordConnectionState(int(next))
	if changed {
		m.logger.Info().
			Str("state", next.String()).
			Dur("latency", latency).
			Msg("Connection state changed")
		for _, fn := range observers {
			fn(next)
		}
	}
}

func (m *Monitor) recordFailure(err error) {
	m.mu.Lock()
	m.failures++
	next := StateDegraded
	if m.failures >= m.cfg.OfflineFailures {
		next = StateOffline
	}
	changed := m.state != next
	m.state = next
	failures := m.failures
	observers := m.observers
	m.mu.Unlock()

	m.metrics.RecordConnectionState(int(next))
	if changed {
		m.logger.Warn().
			Err(err).
			Int("consecutiveFailures", failures).
			Str("state", next.String()).
			Msg("Connection state changed")
		for _, fn := range observers {
			fn(next)
		}
	}
}
