package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"tablecast/internal/events"
	"tablecast/internal/models"
	"tablecast/internal/store"
	"tablecast/internal/transcribe"
	"tablecast/internal/transcribe/mock"
)

// recordingSummarizer counts summarization calls and records the windows.
type recordingSummarizer struct {
	calls   int
	windows [][]string
}

func (r *recordingSummarizer) Summarize(ctx context.Context, transcripts []string) (string, error) {
	r.calls++
	r.windows = append(r.windows, transcripts)
	return strings.Join(transcripts, ". "), nil
}

// failingTranscriber always errors.
type failingTranscriber struct{}

func (failingTranscriber) Transcribe(ctx context.Context, audio []byte) (transcribe.Result, error) {
	return transcribe.Result{}, errors.New("provider unavailable")
}

func (failingTranscriber) Close() error { return nil }

type ingestFixture struct {
	store      *store.Store
	table      *models.Table
	summarizer *recordingSummarizer
	handler    *Handler
}

func newIngestFixture(t *testing.T, transcriber transcribe.Adapter) *ingestFixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	sess := &models.Session{ID: "sess-1", Topic: "roadmap"}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	tbl := &models.Table{ID: "table-1", SessionID: sess.ID, Name: "Table 1", DeviceToken: "tok-1"}
	if err := st.CreateTable(ctx, tbl); err != nil {
		t.Fatalf("create table: %v", err)
	}

	summarizer := &recordingSummarizer{}
	h := NewHandler(st, transcriber, summarizer, events.New(nil), "mock", Limits{
		MaxSegmentBytes: 1024,
		SummarizeEvery:  3,
	})
	return &ingestFixture{store: st, table: tbl, summarizer: summarizer, handler: h}
}

func TestIngestSegment_PersistsWithTranscript(t *testing.T) {
	f := newIngestFixture(t, mock.New())

	rec, err := f.handler.IngestSegment(context.Background(), f.table, 1, make([]byte, 512))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected a generated segment ID")
	}
	if rec.Transcript == "" {
		t.Error("expected a transcript from the mock provider")
	}
	if rec.SizeBytes != 512 {
		t.Errorf("size: got %d, want 512", rec.SizeBytes)
	}

	transcripts, err := f.store.RecentTranscripts(context.Background(), f.table.ID, 10)
	if err != nil {
		t.Fatalf("recent transcripts: %v", err)
	}
	if len(transcripts) != 1 || transcripts[0] != rec.Transcript {
		t.Errorf("stored transcripts: got %v, want [%q]", transcripts, rec.Transcript)
	}
}

func TestIngestSegment_RejectsOversized(t *testing.T) {
	f := newIngestFixture(t, mock.New())

	_, err := f.handler.IngestSegment(context.Background(), f.table, 1, make([]byte, 2048))
	if !errors.Is(err, ErrSegmentTooLarge) {
		t.Fatalf("expected ErrSegmentTooLarge, got %v", err)
	}
}

func TestIngestSegment_RejectsEmpty(t *testing.T) {
	f := newIngestFixture(t, mock.New())

	_, err := f.handler.IngestSegment(context.Background(), f.table, 1, nil)
	if !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("expected ErrEmptySegment, got %v", err)
	}
}

func TestIngestSegment_TranscriptionFailureIsNotFatal(t *testing.T) {
	f := newIngestFixture(t, failingTranscriber{})

	rec, err := f.handler.IngestSegment(context.Background(), f.table, 1, make([]byte, 256))
	if err != nil {
		t.Fatalf("upload must survive a transcription failure: %v", err)
	}
	if rec.Transcript != "" {
		t.Errorf("expected empty transcript, got %q", rec.Transcript)
	}
}

func TestIngestSegment_SummarizesOnCadence(t *testing.T) {
	f := newIngestFixture(t, mock.New())
	ctx := context.Background()

	for i := uint64(1); i <= 7; i++ {
		if _, err := f.handler.IngestSegment(ctx, f.table, i, make([]byte, 256)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	// Summaries roll after segments 3 and 6.
	if f.summarizer.calls != 2 {
		t.Fatalf("summarizer calls: got %d, want 2", f.summarizer.calls)
	}
	// The window spans up to two summary intervals of transcripts.
	last := f.summarizer.windows[1]
	if len(last) != 6 {
		t.Errorf("summary window: got %d transcripts, want 6", len(last))
	}
}

func TestIngestSegment_FailedTranscriptsExcludedFromSummary(t *testing.T) {
	f := newIngestFixture(t, failingTranscriber{})
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		if _, err := f.handler.IngestSegment(ctx, f.table, i, make([]byte, 256)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	// Nothing to summarize: all transcripts are empty.
	if f.summarizer.calls != 0 {
		t.Errorf("expected no summarizer calls without transcripts, got %d", f.summarizer.calls)
	}
}
