package summary

import (
	"context"
	"strings"
	"testing"
)

func TestSummarize_KeepsLongestInOrder(t *testing.T) {
	s := NewExtractive()

	transcripts := []string{
		"short",
		"a considerably longer utterance about the quarterly numbers",
		"ok",
		"another long remark about the onboarding flow and its problems",
		"the third substantial point raised during the discussion window",
	}
	out, err := s.Summarize(context.Background(), transcripts)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if strings.Contains(out, "short") || strings.Contains(out, "ok") {
		t.Errorf("short utterances should be dropped: %q", out)
	}
	// Order of survivors matches the original transcript order.
	iQuarter := strings.Index(out, "quarterly")
	iOnboard := strings.Index(out, "onboarding")
	iThird := strings.Index(out, "third substantial")
	if iQuarter < 0 || iOnboard < 0 || iThird < 0 {
		t.Fatalf("missing expected content: %q", out)
	}
	if !(iQuarter < iOnboard && iOnboard < iThird) {
		t.Errorf("summary reordered the transcripts: %q", out)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := NewExtractive()

	out, err := s.Summarize(context.Background(), []string{"", "   "})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty summary, got %q", out)
	}
}

func TestSummarize_FewerThanLimit(t *testing.T) {
	s := NewExtractive()

	out, err := s.Summarize(context.Background(), []string{"only one thing was said"})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(out, "only one thing was said") {
		t.Errorf("expected the single transcript kept, got %q", out)
	}
}
