// Package agent runs one table's capture session on the device.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tablecast/internal/capture"
	"tablecast/internal/connection"
	"tablecast/internal/models"
	"tablecast/internal/observability/logging"
	"tablecast/internal/upload"
)

// Backend is everything the agent needs from the server: probe target,
// segment sink and nudge transport.
type Backend interface {
	connection.Pinger
	upload.Uploader
	PollNudges(ctx context.Context) ([]*models.Nudge, error)
	AckNudge(ctx context.Context, nudgeID string) error
}

// NudgeHandler receives nudges fetched by the poll loop, e.g. to render
// them on the table's display.
type NudgeHandler func(*models.Nudge)

// Config tunes the session runtime.
type Config struct {
	Capture       capture.Config
	Connection    connection.Config
	QueueCapacity int
	PollInterval  time.Duration
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		Capture:       capture.DefaultRotatorConfig(),
		Connection:    connection.DefaultConfig(),
		QueueCapacity: upload.DefaultCapacity,
		PollInterval:  10 * time.Second,
	}
}

// Session wires the capture rotator, connection monitor, upload
// coordinator and nudge poll loop into one runtime with ordered teardown.
type Session struct {
	backend Backend
	monitor *connection.Monitor
	rotator *capture.Rotator
	coord   *upload.Coordinator
	onNudge NudgeHandler
	cfg     Config
	logger  zerolog.Logger

	mu     sync.Mutex
	seen   map[string]bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession creates a session for the given audio source and backend.
func NewSession(backend Backend, rec capture.Recorder, cfg Config, onNudge NudgeHandler) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	s := &Session{
		backend: backend,
		cfg:     cfg,
		onNudge: onNudge,
		logger:  logging.WithComponent("agent"),
		seen:    make(map[string]bool),
	}

	s.monitor = connection.NewMonitor(backend, cfg.Connection)
	queue := upload.NewQueue(cfg.QueueCapacity)
	s.coord = upload.NewCoordinator(queue, backend, s.monitor.State)
	s.monitor.Subscribe(s.coord.HandleConnectionChange)

	s.rotator = capture.NewRotator(rec, cfg.Capture, s.submitSegment, s.onCaptureHalt)
	return s
}

// Start launches the monitor, the rotation timer and the nudge poll loop.
func (s *Session) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.monitor.Start(runCtx)
	if err := s.rotator.Start(runCtx); err != nil {
		s.monitor.Stop()
		cancel()
		close(s.done)
		return err
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.pollOnce(runCtx)
			}
		}
	}()

	s.logger.Info().Msg("Capture session started")
	return nil
}

// Stop tears the session down in order: the rotation timer stops and the
// final segment is handed to the coordinator, the monitor's probe timer
// stops, the poll loop exits, and a last best-effort drain flushes
// whatever the connection still allows. Failures during the final flush
// are logged, never fatal.
func (s *Session) Stop() {
	s.rotator.Stop()
	s.monitor.Stop()

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	s.coord.Drain(context.Background())
	s.logger.Info().Msg("Capture session stopped")
}

// submitSegment feeds each closed segment into the upload pipeline.
func (s *Session) submitSegment(seg capture.Segment) {
	s.coord.Submit(context.Background(), seg)
}

// onCaptureHalt is invoked when the rotator gives up after a failed
// recovery. Uploads and nudge polling keep running so already-captured
// segments still reach the backend.
func (s *Session) onCaptureHalt(err error) {
	s.logger.Error().Err(err).Msg("Capture halted, uploads and polling continue")
}

// pollOnce fetches visible nudges and hands unseen ones to the handler.
// The backend marks them Delivered as part of the read; acknowledgment is
// the handler's decision via AckNudge.
func (s *Session) pollOnce(ctx context.Context) {
	nudges, err := s.backend.PollNudges(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Nudge poll failed")
		return
	}

	for _, n := range nudges {
		s.mu.Lock()
		dup := s.seen[n.ID]
		s.seen[n.ID] = true
		s.mu.Unlock()
		if dup {
			continue
		}
		s.logger.Info().
			Str("nudgeId", n.ID).
			Str("priority", string(n.Priority)).
			Str("message", n.Message).
			Msg("Nudge received")
		if s.onNudge != nil {
			s.onNudge(n)
		}
	}
}

// AckNudge acknowledges a nudge on behalf of the table.
func (s *Session) AckNudge(ctx context.Context, nudgeID string) error {
	return s.backend.AckNudge(ctx, nudgeID)
}

// ConnectionState reports the monitor's current classification.
func (s *Session) ConnectionState() connection.State {
	return s.monitor.State()
}
