// Package transcribe defines the interface for speech-to-text providers.
package transcribe

import "context"

// Result is the transcript produced for one audio segment.
type Result struct {
	Text       string
	Confidence float64
}

// Adapter transcribes one complete audio segment. Providers receive the
// whole segment at once; there is no streaming session to manage.
type Adapter interface {
	// Transcribe converts the given LINEAR16 audio into text.
	Transcribe(ctx context.Context, audio []byte) (Result, error)

	// Close releases provider resources.
	Close() error
}
