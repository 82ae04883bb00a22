package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tablecast/internal/observability/logging"
	"tablecast/internal/observability/metrics"
)

// Errors surfaced by the capture pipeline.
var (
	// ErrRecorderStopped - the audio source is not recording.
	ErrRecorderStopped = errors.New("recorder is not active")
	// ErrCaptureHalted - rotation and recovery both failed; capture stops
	// until explicitly restarted.
	ErrCaptureHalted = errors.New("capture halted after failed recovery")
)

// SegmentSink receives each closed segment synchronously upon rotation.
type SegmentSink func(Segment)

// HaltFunc is invoked when capture halts after a failed recovery. The
// failure is surfaced here, never silently swallowed.
type HaltFunc func(error)

// Config tunes the rotation cadence and the minimum useful segment size.
type Config struct {
	RotateInterval  time.Duration
	MinSegmentBytes int
}

// DefaultRotatorConfig returns the standard 10s rotation with a 1KiB floor.
func DefaultRotatorConfig() Config {
	return Config{
		RotateInterval:  10 * time.Second,
		MinSegmentBytes: 1024,
	}
}

// Rotator closes the active recording into a segment on a fixed cadence
// and immediately starts a new one, so capture never gaps. Segments below
// the minimum size threshold are discarded before reaching the sink.
type Rotator struct {
	rec     Recorder
	cfg     Config
	sink    SegmentSink
	onHalt  HaltFunc
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu     sync.Mutex
	seq    uint64
	halted bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotator creates a Rotator feeding the given sink.
func NewRotator(rec Recorder, cfg Config, sink SegmentSink, onHalt HaltFunc) *Rotator {
	if cfg.RotateInterval <= 0 {
		cfg = DefaultRotatorConfig()
	}
	return &Rotator{
		rec:     rec,
		cfg:     cfg,
		sink:    sink,
		onHalt:  onHalt,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("capture-rotator"),
	}
}

// Start begins recording and launches the rotation timer.
func (r *Rotator) Start(ctx context.Context) error {
	if err := r.rec.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.cfg.RotateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Rotate(ctx)
			}
		}
	}()
	return nil
}

// Stop cancels the rotation timer and closes out the final segment,
// handing it to the sink. The final hand-off is best effort.
func (r *Rotator) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}

	r.mu.Lock()
	halted := r.halted
	r.mu.Unlock()
	if halted {
		return
	}

	data, err := r.rec.StopAndSegment()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to close final segment")
		return
	}
	r.emit(data)
}

// Halted reports whether capture stopped after a failed recovery.
func (r *Rotator) Halted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.halted
}

// Rotate closes the active recording, restarts the source immediately and
// hands the closed segment to the sink. On a source failure it attempts
// exactly one recovery restart; if that also fails, capture halts and the
// failure is surfaced through the halt callback.
func (r *Rotator) Rotate(ctx context.Context) {
	r.mu.Lock()
	if r.halted {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	data, err := r.rec.StopAndSegment()
	if err != nil {
		r.recover(ctx, err)
		return
	}

	// New recording starts before the closed segment is handled so the
	// capture never gaps.
	if err := r.rec.Start(ctx); err != nil {
		r.recover(ctx, err)
	}

	r.emit(data)
}

func (r *Rotator) emit(data []byte) {
	kept := len(data) >= r.cfg.MinSegmentBytes
	r.metrics.RecordRotation(kept)
	if !kept {
		// Near-silence or an empty container; not useful evidence.
		r.logger.Debug().Int("bytes", len(data)).Msg("Segment below minimum size, discarded")
		return
	}

	r.mu.Lock()
	r.seq++
	seg := Segment{Seq: r.seq, Data: data, CapturedAt: time.Now().UTC()}
	r.mu.Unlock()

	r.sink(seg)
}

func (r *Rotator) recover(ctx context.Context, cause error) {
	r.logger.Warn().Err(cause).Msg("Audio source failed, attempting recovery restart")
	if err := r.rec.Restart(ctx); err == nil {
		return
	}

	r.mu.Lock()
	r.halted = true
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	r.logger.Error().Err(cause).Msg("Recovery restart failed, capture halted")
	if r.onHalt != nil {
		r.onHalt(ErrCaptureHalted)
	}
}
