// Package api implements the HTTP layer for FitCheck. Handlers are methods on
// *Server. Each handler file is responsible for one resource group and only
// imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nyashahama/fitcheck-backend/internal/regional"
	"github.com/nyashahama/fitcheck-backend/internal/store"
	"github.com/nyashahama/fitcheck-backend/internal/worker"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string
}

// RegionalTracker is the subset of *regional.Tracker the handlers use.
type RegionalTracker interface {
	Update(ctx context.Context, profileID uuid.UUID, location string) (regional.Result, bool)
	Current(profileID uuid.UUID) (regional.State, bool)
	Forget(profileID uuid.UUID)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// store persists profiles, symptom history and settings.
	store *store.Store

	// regional holds each profile's location and latest regional Result.
	regional RegionalTracker

	// worker refreshes a location for every profile tracking it.
	worker worker.Enqueuer

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to hand to listener.New.
func NewServer(
	st *store.Store,
	tracker RegionalTracker,
	enqueuer worker.Enqueuer,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		store:    st,
		regional: tracker,
		worker:   enqueuer,
		cfg:      cfg,
		logger:   logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {

		// Stateless evaluation, no profile needed.
		r.Post("/evaluate", s.handleEvaluate)

		// Profiles: no auth required (anonymous creation).
		r.Post("/profile", s.handleCreateProfile)

		// Profile-scoped routes require a matching X-Anon-Token.
		r.Route("/profile/{profileID}", func(r chi.Router) {
			r.Use(s.requireProfileToken)
			r.Delete("/", s.handleDeleteProfile)

			r.Put("/location", s.handleUpdateLocation)
			r.Get("/regional", s.handleGetRegional)

			r.Post("/assessments", s.handleCreateAssessment)
			r.Get("/history", s.handleGetHistory)
			r.Delete("/history", s.handleClearHistory)

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handleSaveSettings)
		})
	})

	return r
}
