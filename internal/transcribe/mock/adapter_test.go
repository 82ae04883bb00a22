package mock

import (
	"context"
	"testing"

	"tablecast/internal/transcribe"
)

func TestTranscribe_CyclesThroughPhrases(t *testing.T) {
	a := New()
	ctx := context.Background()

	seen := make([]string, 0, len(DefaultPhrases)+1)
	for i := 0; i <= len(DefaultPhrases); i++ {
		res, err := a.Transcribe(ctx, []byte("audio"))
		if err != nil {
			t.Fatalf("transcribe %d: %v", i, err)
		}
		if res.Text == "" {
			t.Fatalf("transcribe %d: empty text", i)
		}
		seen = append(seen, res.Text)
	}

	// After a full cycle the adapter wraps around to the first phrase.
	if seen[len(DefaultPhrases)] != seen[0] {
		t.Errorf("expected cycle back to %q, got %q", seen[0], seen[len(DefaultPhrases)])
	}
}

func TestTranscribe_CustomPhrases(t *testing.T) {
	a := NewWithPhrases([]transcribe.Result{{Text: "only phrase", Confidence: 0.5}})

	res, err := a.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "only phrase" || res.Confidence != 0.5 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestTranscribe_AfterClose(t *testing.T) {
	a := New()
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := a.Transcribe(context.Background(), nil); err == nil {
		t.Error("expected an error after close")
	}
}
