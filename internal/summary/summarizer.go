// Package summary produces rolling discussion summaries from recent
// transcripts.
package summary

import (
	"context"
	"fmt"
	"strings"
)

// Summarizer condenses a window of recent transcripts into one summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcripts []string) (string, error)
}

// Extractive is a heuristic summarizer that keeps the longest transcripts
// in the window, on the assumption that longer utterances carry the
// substance of the discussion. It exists so the pipeline runs end to end
// without an external language model.
type Extractive struct {
	// MaxSentences bounds the summary length. Zero means 3.
	MaxSentences int
}

// NewExtractive creates an Extractive summarizer.
func NewExtractive() *Extractive {
	return &Extractive{MaxSentences: 3}
}

// Summarize picks up to MaxSentences transcripts by length, preserving
// their original order.
func (e *Extractive) Summarize(ctx context.Context, transcripts []string) (string, error) {
	limit := e.MaxSentences
	if limit <= 0 {
		limit = 3
	}

	type scored struct {
		index int
		text  string
	}
	kept := make([]scored, 0, len(transcripts))
	for i, t := range transcripts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		kept = append(kept, scored{index: i, text: t})
	}
	if len(kept) == 0 {
		return "", nil
	}

	// Selection sort by length is fine at window sizes of a handful.
	for len(kept) > limit {
		shortest := 0
		for i, s := range kept {
			if len(s.text) < len(kept[shortest].text) {
				shortest = i
			}
		}
		kept = append(kept[:shortest], kept[shortest+1:]...)
	}

	parts := make([]string, len(kept))
	for i, s := range kept {
		parts[i] = s.text
	}
	return fmt.Sprintf("Recent discussion: %s", strings.Join(parts, ". ")), nil
}
