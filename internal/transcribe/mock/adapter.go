// Package mock provides a mock transcription adapter for running without
// cloud credentials. It cycles through canned table-discussion phrases so
// downstream summaries have realistic material to work with.
package mock

import (
	"context"
	"sync"

	"tablecast/internal/transcribe"
)

// DefaultPhrases provides sample transcripts for simulation.
var DefaultPhrases = []transcribe.Result{
	{Text: "I think we should focus on the onboarding problem first", Confidence: 0.94},
	{Text: "The numbers from last quarter don't support that", Confidence: 0.91},
	{Text: "Can everyone share one blocker before we move on", Confidence: 0.96},
	{Text: "We keep circling back to pricing without deciding anything", Confidence: 0.88},
	{Text: "Let's write that down as an action item", Confidence: 0.97},
}

// Adapter implements transcribe.Adapter with canned responses.
type Adapter struct {
	mu      sync.Mutex
	phrases []transcribe.Result
	index   int
	closed  bool
}

// New creates a new mock adapter cycling through DefaultPhrases.
func New() *Adapter {
	return &Adapter{phrases: DefaultPhrases}
}

// NewWithPhrases creates a mock adapter with a fixed phrase list.
func NewWithPhrases(phrases []transcribe.Result) *Adapter {
	return &Adapter{phrases: phrases}
}

// Transcribe returns the next canned phrase, cycling through the list.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte) (transcribe.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return transcribe.Result{}, context.Canceled
	}
	if len(a.phrases) == 0 {
		return transcribe.Result{}, nil
	}
	res := a.phrases[a.index%len(a.phrases)]
	a.index++
	return res, nil
}

// Close ends the mock session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
