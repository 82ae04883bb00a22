package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tablecast/internal/models"
)

// Provisioning endpoints for facilitators: sessions, tables and playbooks
// are created up front, before devices come online.

type createSessionRequest struct {
	Topic string `json:"topic"`
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	sess := &models.Session{ID: uuid.NewString(), Topic: req.Topic}
	if err := a.store.CreateSession(r.Context(), sess); err != nil {
		a.logger.Error().Err(err).Msg("Failed to create session")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type createTableRequest struct {
	Name string `json:"name"`
}

// tableWithToken is the one response that exposes the device token: it is
// handed to the operator at registration time and never returned again.
type tableWithToken struct {
	models.Table
	DeviceToken string `json:"deviceToken"`
}

func (a *API) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := a.store.GetSession(r.Context(), sessionID); err != nil {
		a.writeNudgeError(w, err)
		return
	}

	tbl := &models.Table{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Name:        req.Name,
		DeviceToken: uuid.NewString(),
	}
	if err := a.store.CreateTable(r.Context(), tbl); err != nil {
		a.logger.Error().Err(err).Msg("Failed to create table")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, tableWithToken{Table: *tbl, DeviceToken: tbl.DeviceToken})
}

func (a *API) handleCreatePlaybook(w http.ResponseWriter, r *http.Request) {
	var pb models.Playbook
	if err := json.NewDecoder(r.Body).Decode(&pb); err != nil || pb.Name == "" || len(pb.Steps) == 0 {
		writeError(w, http.StatusBadRequest, "name and steps are required")
		return
	}
	for i := range pb.Steps {
		if pb.Steps[i].Priority == "" {
			pb.Steps[i].Priority = models.PriorityNormal
		}
		if !pb.Steps[i].Priority.Valid() {
			writeError(w, http.StatusBadRequest, "priority must be normal or urgent")
			return
		}
	}

	pb.ID = uuid.NewString()
	if err := a.store.CreatePlaybook(r.Context(), &pb); err != nil {
		a.logger.Error().Err(err).Msg("Failed to create playbook")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, pb)
}
