package upload

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tablecast/internal/capture"
	"tablecast/internal/connection"
	"tablecast/internal/observability/logging"
	"tablecast/internal/observability/metrics"
)

// Uploader sends one closed segment to the backend. The only operation in
// the pipeline that may block on the network.
type Uploader interface {
	Upload(ctx context.Context, seg capture.Segment) error
}

// StateFunc reports the current connection classification.
type StateFunc func() connection.State

// Coordinator drains the bounded queue to the backend. A single-flight
// guard ensures no two drains run concurrently, which together with
// sequential uploads guarantees in-order delivery.
type Coordinator struct {
	queue    *Queue
	uploader Uploader
	state    StateFunc
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu       sync.Mutex
	draining bool

	// spawn runs the drain triggered by Submit and by connection
	// transitions. Replaced in tests to run synchronously.
	spawn func(func())
}

// NewCoordinator creates a Coordinator over the given queue.
func NewCoordinator(queue *Queue, uploader Uploader, state StateFunc) *Coordinator {
	return &Coordinator{
		queue:    queue,
		uploader: uploader,
		state:    state,
		metrics:  metrics.DefaultMetrics,
		logger:   logging.WithComponent("upload-coordinator"),
		spawn:    func(f func()) { go f() },
	}
}

// Submit accepts a freshly closed segment. While Offline it is only
// buffered; otherwise a drain is triggered immediately so the segment is
// sent best effort, falling back to remaining queued on failure.
func (c *Coordinator) Submit(ctx context.Context, seg capture.Segment) {
	if evicted, ok := c.queue.Enqueue(seg); ok {
		// Bounded-eviction policy: oldest loses to newest.
		c.metrics.RecordEviction(c.queue.Len())
		c.logger.Warn().
			Uint64("evictedSeq", evicted.Seq).
			Uint64("newSeq", seg.Seq).
			Msg("Upload queue full, evicted oldest segment")
	} else {
		c.metrics.RecordQueueDepth(c.queue.Len())
	}

	if c.state() == connection.StateOffline {
		return
	}
	c.spawn(func() { c.Drain(ctx) })
}

// HandleConnectionChange triggers a drain whenever the connection leaves
// the Offline state. Registered as a connection.Observer.
func (c *Coordinator) HandleConnectionChange(st connection.State) {
	if st == connection.StateOffline {
		return
	}
	c.spawn(func() { c.Drain(context.Background()) })
}

// Drain uploads queued segments head-first until the queue is empty or an
// upload fails. On failure it stops immediately, leaving the failed
// segment and everything behind it intact for the next attempt. A no-op
// while Offline or while another drain is in flight.
func (c *Coordinator) Drain(ctx context.Context) {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.draining = false
		c.mu.Unlock()
	}()

	if c.state() == connection.StateOffline {
		return
	}

	failed := false
	for {
		seg, ok := c.queue.Head()
		if !ok {
			break
		}

		start := time.Now()
		if err := c.uploader.Upload(ctx, seg); err != nil {
			failed = true
			c.logger.Warn().
				Err(err).
				Uint64("seq", seg.Seq).
				Int("remaining", c.queue.Len()).
				Msg("Segment upload failed, drain stopped")
			break
		}
		c.metrics.UploadLatency.Observe(time.Since(start).Seconds())
		c.queue.Dequeue()
		c.metrics.RecordQueueDepth(c.queue.Len())
	}
	c.metrics.RecordDrain(failed)
}
