// Package capture rotates a live recording into closed audio segments.
package capture

import (
	"context"
	"math"
	"sync"
	"time"
)

// Segment is one rotated chunk of captured audio awaiting upload. Seq
// increases monotonically in production order.
type Segment struct {
	Seq        uint64
	Data       []byte
	CapturedAt time.Time
}

// Recorder abstracts the platform audio source so the rotation logic never
// depends on a concrete backend. Implementations are chosen at runtime.
type Recorder interface {
	// Start begins a new recording.
	Start(ctx context.Context) error

	// StopAndSegment closes the active recording and returns its bytes.
	StopAndSegment() ([]byte, error)

	// Restart recovers the source after a failure: best-effort stop
	// followed by a fresh start.
	Restart(ctx context.Context) error
}

// SimulatedRecorder synthesizes 16-bit mono PCM at a fixed sample rate.
// It stands in for a hardware microphone on development machines and in
// the device agent's demo mode.
type SimulatedRecorder struct {
	SampleRateHz int

	mu      sync.Mutex
	started time.Time
	active  bool
}

// NewSimulatedRecorder creates a simulated PCM source.
func NewSimulatedRecorder(sampleRateHz int) *SimulatedRecorder {
	if sampleRateHz <= 0 {
		sampleRateHz = 16000
	}
	return &SimulatedRecorder{SampleRateHz: sampleRateHz}
}

func (r *SimulatedRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = time.Now()
	r.active = true
	return nil
}

func (r *SimulatedRecorder) StopAndSegment() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, ErrRecorderStopped
	}
	elapsed := time.Since(r.started)
	r.active = false
	return r.synthesize(elapsed), nil
}

func (r *SimulatedRecorder) Restart(ctx context.Context) error {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
	return r.Start(ctx)
}

// synthesize renders a quiet 440Hz tone for the elapsed duration.
func (r *SimulatedRecorder) synthesize(elapsed time.Duration) []byte {
	samples := int(elapsed.Seconds() * float64(r.SampleRateHz))
	// Always at least one 10ms frame so instant rotations still carry audio.
	if floor := r.SampleRateHz / 100; samples < floor {
		samples = floor
	}
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(2000 * math.Sin(2*math.Pi*440*float64(i)/float64(r.SampleRateHz)))
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
