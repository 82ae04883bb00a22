package capture

import (
	"context"
	"errors"
	"testing"
)

// scriptedRecorder fails on demand to exercise recovery paths.
type scriptedRecorder struct {
	segments    [][]byte
	segIndex    int
	stopErr     error
	startErr    error
	restartErr  error
	startCalls  int
	stopCalls   int
	restartCall int
}

func (r *scriptedRecorder) Start(ctx context.Context) error {
	r.startCalls++
	return r.startErr
}

func (r *scriptedRecorder) StopAndSegment() ([]byte, error) {
	r.stopCalls++
	if r.stopErr != nil {
		return nil, r.stopErr
	}
	if r.segIndex >= len(r.segments) {
		return make([]byte, 2048), nil
	}
	seg := r.segments[r.segIndex]
	r.segIndex++
	return seg, nil
}

func (r *scriptedRecorder) Restart(ctx context.Context) error {
	r.restartCall++
	return r.restartErr
}

type collector struct {
	segments []Segment
}

func (c *collector) sink(s Segment) {
	c.segments = append(c.segments, s)
}

func newTestRotator(rec Recorder, sink SegmentSink, onHalt HaltFunc) *Rotator {
	return NewRotator(rec, Config{RotateInterval: 0, MinSegmentBytes: 1024}, sink, onHalt)
}

func TestRotate_ProducesOrderedSegments(t *testing.T) {
	rec := &scriptedRecorder{segments: [][]byte{
		make([]byte, 2048),
		make([]byte, 4096),
		make([]byte, 3000),
	}}
	c := &collector{}
	r := NewRotator(rec, DefaultRotatorConfig(), c.sink, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		r.Rotate(ctx)
	}

	if len(c.segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(c.segments))
	}
	for i, seg := range c.segments {
		if seg.Seq != uint64(i+1) {
			t.Errorf("segment %d: seq=%d, want %d", i, seg.Seq, i+1)
		}
	}
	// A new recording starts on every rotation, before upload handling.
	if rec.startCalls != 3 {
		t.Errorf("expected 3 restarts of the source, got %d", rec.startCalls)
	}
}

func TestRotate_DiscardsUndersizedSegments(t *testing.T) {
	rec := &scriptedRecorder{segments: [][]byte{
		make([]byte, 100), // near-silence, below threshold
		make([]byte, 2048),
	}}
	c := &collector{}
	r := newTestRotator(rec, c.sink, nil)

	ctx := context.Background()
	r.Rotate(ctx)
	r.Rotate(ctx)

	if len(c.segments) != 1 {
		t.Fatalf("expected 1 kept segment, got %d", len(c.segments))
	}
	if c.segments[0].Seq != 1 {
		t.Errorf("discarded segments must not consume sequence numbers, got seq=%d", c.segments[0].Seq)
	}
}

func TestRotate_RecoversOnceFromStopFailure(t *testing.T) {
	rec := &scriptedRecorder{stopErr: errors.New("device wedged")}
	c := &collector{}
	r := newTestRotator(rec, c.sink, nil)

	r.Rotate(context.Background())

	if rec.restartCall != 1 {
		t.Errorf("expected exactly one recovery restart, got %d", rec.restartCall)
	}
	if r.Halted() {
		t.Error("capture should continue after a successful recovery")
	}
	if len(c.segments) != 0 {
		t.Error("failed rotation must not emit a segment")
	}
}

func TestRotate_HaltsWhenRecoveryFails(t *testing.T) {
	rec := &scriptedRecorder{
		stopErr:    errors.New("device wedged"),
		restartErr: errors.New("still wedged"),
	}
	c := &collector{}
	var haltErr error
	r := newTestRotator(rec, c.sink, func(err error) { haltErr = err })

	ctx := context.Background()
	r.Rotate(ctx)

	if !r.Halted() {
		t.Fatal("capture should halt after failed recovery")
	}
	if !errors.Is(haltErr, ErrCaptureHalted) {
		t.Errorf("halt should surface ErrCaptureHalted, got %v", haltErr)
	}

	// Further rotations are no-ops until an explicit restart.
	stops := rec.stopCalls
	r.Rotate(ctx)
	if rec.stopCalls != stops {
		t.Error("halted rotator must not touch the source")
	}
}

func TestStop_EmitsFinalSegment(t *testing.T) {
	rec := &scriptedRecorder{segments: [][]byte{make([]byte, 2048)}}
	c := &collector{}
	r := newTestRotator(rec, c.sink, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop()

	if len(c.segments) != 1 {
		t.Fatalf("expected the final segment on stop, got %d", len(c.segments))
	}
}

func TestSimulatedRecorder_ProducesPCM(t *testing.T) {
	rec := NewSimulatedRecorder(16000)
	ctx := context.Background()

	if err := rec.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := rec.StopAndSegment(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Stopping a stopped recorder fails until restarted.
	if _, err := rec.StopAndSegment(); !errors.Is(err, ErrRecorderStopped) {
		t.Errorf("expected ErrRecorderStopped, got %v", err)
	}
	if err := rec.Restart(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, err := rec.StopAndSegment(); err != nil {
		t.Errorf("stop after restart: %v", err)
	}
}
