// Package httpapi exposes the REST surface for devices and facilitators.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tablecast/internal/ingest"
	"tablecast/internal/nudge"
	"tablecast/internal/observability/logging"
	"tablecast/internal/store"
)

// API bundles the collaborators behind the HTTP surface.
type API struct {
	store      *store.Store
	ingest     *ingest.Handler
	tracker    *nudge.Tracker
	scheduler  *nudge.Scheduler
	adminToken string
	logger     zerolog.Logger
}

// New creates the API.
func New(st *store.Store, ing *ingest.Handler, tracker *nudge.Tracker, scheduler *nudge.Scheduler, adminToken string) *API {
	return &API{
		store:      st,
		ingest:     ing,
		tracker:    tracker,
		scheduler:  scheduler,
		adminToken: adminToken,
		logger:     logging.WithComponent("httpapi"),
	}
}

// Router constructs the HTTP router for the service.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		// Probe target for device connection monitors. Unauthenticated so
		// probes stay cheap and never fail on credential rotation.
		r.Get("/ping", a.handlePing)

		// Device endpoints
		r.Group(func(r chi.Router) {
			r.Use(a.deviceAuth)
			r.Post("/tables/{tableID}/segments", a.handleUploadSegment)
			r.Get("/tables/{tableID}/nudges", a.handlePollNudges)
			r.Post("/nudges/{nudgeID}/ack", a.handleAckNudge)
		})

		// Facilitator endpoints
		r.Group(func(r chi.Router) {
			r.Use(a.adminAuth)
			r.Post("/sessions", a.handleCreateSession)
			r.Post("/sessions/{sessionID}/tables", a.handleCreateTable)
			r.Post("/playbooks", a.handleCreatePlaybook)
			r.Post("/tables/{tableID}/nudges", a.handleCreateTableNudge)
			r.Post("/sessions/{sessionID}/nudges", a.handleCreateSessionNudge)
			r.Get("/tables/{tableID}/nudges/stats", a.handleTableStats)
			r.Get("/sessions/{sessionID}/nudges/stats", a.handleSessionStats)
			r.Post("/sessions/{sessionID}/playbooks/{playbookID}/start", a.handleStartPlaybook)
		})
	})

	return r
}
