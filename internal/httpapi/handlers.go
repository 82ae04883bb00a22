package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tablecast/internal/ingest"
	"tablecast/internal/models"
	"tablecast/internal/nudge"
	"tablecast/internal/store"
)

// segmentSeqHeader carries the device-assigned sequence number of an
// uploaded segment.
const segmentSeqHeader = "X-Segment-Seq"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"serverTime": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (a *API) handleUploadSegment(w http.ResponseWriter, r *http.Request) {
	tbl := tableFromContext(r.Context())
	if tbl == nil || tbl.ID != chi.URLParam(r, "tableID") {
		writeError(w, http.StatusForbidden, "token not valid for this table")
		return
	}

	seq, err := strconv.ParseUint(r.Header.Get(segmentSeqHeader), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or invalid "+segmentSeqHeader+" header")
		return
	}

	audio, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	rec, err := a.ingest.IngestSegment(r.Context(), tbl, seq, audio)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrSegmentTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ingest.ErrEmptySegment):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			a.logger.Error().Err(err).Str("tableId", tbl.ID).Msg("Segment ingestion failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type createNudgeRequest struct {
	Message  string          `json:"message"`
	Priority models.Priority `json:"priority"`
	// Broadcast selects fan-out (one nudge per table) for session nudges.
	// Defaults to true; false creates a single session-wide nudge instead.
	Broadcast *bool `json:"broadcast,omitempty"`
}

func decodeNudgeRequest(r *http.Request) (*createNudgeRequest, error) {
	var req createNudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if req.Message == "" {
		return nil, errors.New("message is required")
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	if !req.Priority.Valid() {
		return nil, errors.New("priority must be normal or urgent")
	}
	return &req, nil
}

func (a *API) handleCreateTableNudge(w http.ResponseWriter, r *http.Request) {
	req, err := decodeNudgeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := a.tracker.CreateForTable(r.Context(), chi.URLParam(r, "tableID"), req.Message, req.Priority)
	if err != nil {
		a.writeNudgeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (a *API) handleCreateSessionNudge(w http.ResponseWriter, r *http.Request) {
	req, err := decodeNudgeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	if req.Broadcast != nil && !*req.Broadcast {
		n, err := a.tracker.CreateForSession(r.Context(), sessionID, req.Message, req.Priority)
		if err != nil {
			a.writeNudgeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
		return
	}

	nudges, err := a.tracker.Broadcast(r.Context(), sessionID, req.Message, req.Priority)
	if err != nil {
		a.writeNudgeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"nudges": nudges})
}

// writeNudgeError maps nudge creation failures onto HTTP statuses. A 429
// carries no body mutation on the server side; retrying after the window
// is safe.
func (a *API) writeNudgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, nudge.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "nudge rate limited, retry after the cooldown window")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		a.logger.Error().Err(err).Msg("Nudge operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) handlePollNudges(w http.ResponseWriter, r *http.Request) {
	tbl := tableFromContext(r.Context())
	if tbl == nil || tbl.ID != chi.URLParam(r, "tableID") {
		writeError(w, http.StatusForbidden, "token not valid for this table")
		return
	}

	nudges, err := a.tracker.PollForDevice(r.Context(), tbl)
	if err != nil {
		a.logger.Error().Err(err).Str("tableId", tbl.ID).Msg("Nudge poll failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if nudges == nil {
		nudges = []*models.Nudge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"nudges": nudges})
}

func (a *API) handleAckNudge(w http.ResponseWriter, r *http.Request) {
	tbl := tableFromContext(r.Context())
	nudgeID := chi.URLParam(r, "nudgeID")

	// A device may only acknowledge nudges visible to its own table, so
	// check ownership before any mutation.
	n, err := a.store.GetNudge(r.Context(), nudgeID)
	if err != nil {
		a.writeNudgeError(w, err)
		return
	}
	if n.SessionID != tbl.SessionID || (n.TableID != "" && n.TableID != tbl.ID) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	n, err = a.tracker.Acknowledge(r.Context(), nudgeID)
	if err != nil {
		a.writeNudgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) handleTableStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.tracker.StatsForTable(r.Context(), chi.URLParam(r, "tableID"))
	if err != nil {
		a.writeNudgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.tracker.StatsForSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.writeNudgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleStartPlaybook(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	playbookID := chi.URLParam(r, "playbookID")

	run, nudges, err := a.scheduler.StartPlaybook(r.Context(), sessionID, playbookID)
	if err != nil {
		a.writeNudgeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"run": run, "nudges": nudges})
}
