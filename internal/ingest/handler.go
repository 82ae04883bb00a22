// Package ingest accepts uploaded audio segments, transcribes them and
// maintains rolling summaries per table.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tablecast/internal/events"
	"tablecast/internal/models"
	"tablecast/internal/observability/logging"
	"tablecast/internal/observability/metrics"
	"tablecast/internal/store"
	"tablecast/internal/summary"
	"tablecast/internal/transcribe"
)

// ErrSegmentTooLarge is returned when an upload exceeds the configured
// size guardrail.
var ErrSegmentTooLarge = errors.New("segment exceeds maximum size")

// ErrEmptySegment is returned when an upload carries no audio.
var ErrEmptySegment = errors.New("segment is empty")

// Limits defines safety guardrails for segment ingestion.
type Limits struct {
	MaxSegmentBytes int64
	SummarizeEvery  int
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxSegmentBytes: 5 * 1024 * 1024,
		SummarizeEvery:  3,
	}
}

// Handler persists uploaded segments and drives transcription and
// summarization. Transcription and summarization failures never fail the
// upload: the segment is already safely stored, and partial enrichment is
// better than forcing the device to re-send.
type Handler struct {
	store       *store.Store
	transcriber transcribe.Adapter
	summarizer  summary.Summarizer
	publisher   *events.Publisher
	provider    string
	limits      Limits
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	mu       sync.Mutex
	ingested map[string]int // segments accepted per table since startup
}

// NewHandler creates an ingestion handler.
func NewHandler(
	st *store.Store,
	transcriber transcribe.Adapter,
	summarizer summary.Summarizer,
	publisher *events.Publisher,
	provider string,
	limits Limits,
) *Handler {
	if limits.MaxSegmentBytes <= 0 {
		limits.MaxSegmentBytes = DefaultLimits().MaxSegmentBytes
	}
	if limits.SummarizeEvery <= 0 {
		limits.SummarizeEvery = DefaultLimits().SummarizeEvery
	}
	return &Handler{
		store:       st,
		transcriber: transcriber,
		summarizer:  summarizer,
		publisher:   publisher,
		provider:    provider,
		limits:      limits,
		metrics:     metrics.DefaultMetrics,
		logger:      logging.WithComponent("ingest"),
	}
}

// IngestSegment accepts one uploaded segment for the given table. The
// segment is persisted first; transcription and summarization run after
// and their failures are logged, not returned.
func (h *Handler) IngestSegment(ctx context.Context, tbl *models.Table, seq uint64, audio []byte) (*models.SegmentRecord, error) {
	if len(audio) == 0 {
		h.metrics.RecordIngestRejected("empty")
		return nil, ErrEmptySegment
	}
	if int64(len(audio)) > h.limits.MaxSegmentBytes {
		h.metrics.RecordIngestRejected("too_large")
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrSegmentTooLarge, len(audio), h.limits.MaxSegmentBytes)
	}

	rec := &models.SegmentRecord{
		ID:        uuid.NewString(),
		TableID:   tbl.ID,
		Seq:       seq,
		SizeBytes: len(audio),
		CreatedAt: time.Now().UTC(),
	}
	rec.Transcript = h.transcribeSegment(ctx, tbl, rec, audio)

	if err := h.store.InsertSegment(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist segment: %w", err)
	}
	h.metrics.RecordIngest(len(audio))

	if rec.Transcript != "" {
		ev := models.TranscriptEvent{
			EventType:  "table.transcript.final",
			SessionID:  tbl.SessionID,
			TableID:    tbl.ID,
			SegmentID:  rec.ID,
			Seq:        rec.Seq,
			Text:       rec.Transcript,
			Confidence: rec.Confidence,
			Timestamp:  time.Now().UnixMilli(),
		}
		if err := h.publisher.PublishTranscript(ctx, tbl.ID, ev); err != nil {
			h.logger.Error().Err(err).Str("segmentId", rec.ID).Msg("Failed to publish transcript event")
		}
	}

	h.mu.Lock()
	if h.ingested == nil {
		h.ingested = make(map[string]int)
	}
	h.ingested[tbl.ID]++
	count := h.ingested[tbl.ID]
	h.mu.Unlock()

	if count%h.limits.SummarizeEvery == 0 {
		h.rollSummary(ctx, tbl, count)
	}
	return rec, nil
}

// transcribeSegment runs the provider and returns the transcript, or an
// empty string when transcription fails or yields nothing.
func (h *Handler) transcribeSegment(ctx context.Context, tbl *models.Table, rec *models.SegmentRecord, audio []byte) string {
	start := time.Now()
	res, err := h.transcriber.Transcribe(ctx, audio)
	h.metrics.RecordTranscribe(h.provider, err, time.Since(start).Seconds())
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("tableId", tbl.ID).
			Uint64("seq", rec.Seq).
			Msg("Transcription failed, storing segment without transcript")
		return ""
	}
	rec.Confidence = res.Confidence
	return res.Text
}

// rollSummary refreshes the table's rolling summary from the most recent
// transcripts. The window spans the last two summary intervals so
// consecutive summaries overlap.
func (h *Handler) rollSummary(ctx context.Context, tbl *models.Table, segmentCount int) {
	window := h.limits.SummarizeEvery * 2
	transcripts, err := h.store.RecentTranscripts(ctx, tbl.ID, window)
	if err != nil {
		h.metrics.SummaryErrors.Inc()
		h.logger.Error().Err(err).Str("tableId", tbl.ID).Msg("Failed to load transcripts for summary")
		return
	}
	if len(transcripts) == 0 {
		return
	}

	text, err := h.summarizer.Summarize(ctx, transcripts)
	if err != nil {
		h.metrics.SummaryErrors.Inc()
		h.logger.Error().Err(err).Str("tableId", tbl.ID).Msg("Summarization failed")
		return
	}
	h.metrics.SummariesRolled.Inc()

	ev := models.SummaryEvent{
		EventType:    "table.summary.rolling",
		SessionID:    tbl.SessionID,
		TableID:      tbl.ID,
		Summary:      text,
		SegmentCount: segmentCount,
		Timestamp:    time.Now().UnixMilli(),
	}
	if err := h.publisher.PublishSummary(ctx, tbl.ID, ev); err != nil {
		h.logger.Error().Err(err).Str("tableId", tbl.ID).Msg("Failed to publish summary event")
	}
}
