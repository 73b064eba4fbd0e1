package api

import (
	"fmt"
	"net/http"

	"github.com/nyashahama/fitcheck-backend/internal/store"
)

// ─── GET /api/profile/:profileID/history ──────────────────────────────────────

type historyResponse struct {
	Records []store.Record `json:"records"`
}

// handleGetHistory returns the profile's assessments, newest first. A corrupt
// history blob is a 500, never an empty list.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.LoadHistory(r.Context(), profileIDFrom(r.Context()))
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("load history: %w", err))
		return
	}
	store.SortNewestFirst(records)

	respond(w, http.StatusOK, historyResponse{Records: records})
}

// ─── DELETE /api/profile/:profileID/history ───────────────────────────────────

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearHistory(r.Context(), profileIDFrom(r.Context())); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("clear history: %w", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
