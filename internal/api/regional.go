package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nyashahama/fitcheck-backend/internal/regional"
)

// Warnings shown alongside degraded regional data.
const (
	warnFallback = "Could not fetch real-time data. Using estimated values."
	warnFailed   = "Regional flu data is unavailable. Your result does not account for local activity."
)

// regionalWarning returns the user-facing warning for res, or "" when the
// data is live.
func regionalWarning(res regional.Result) string {
	switch res.Status {
	case regional.StatusFallback:
		return warnFallback
	case regional.StatusFailed:
		return warnFailed
	default:
		return ""
	}
}

// ─── PUT /api/profile/:profileID/location ─────────────────────────────────────

type updateLocationRequest struct {
	// Location is a zip code, state name or abbreviation. Empty clears it.
	Location string `json:"location"`
}

type updateLocationResponse struct {
	Regional        regional.Result `json:"regional"`
	Applied         bool            `json:"applied"`
	RegionalWarning string          `json:"regional_warning,omitempty"`
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req updateLocationRequest
	if !decode(w, r, &req) {
		return
	}

	res, applied := s.updateLocation(r, profileIDFrom(r.Context()), req.Location)

	respond(w, http.StatusOK, updateLocationResponse{
		Regional:        res,
		Applied:         applied,
		RegionalWarning: regionalWarning(res),
	})
}

// updateLocation fetches regional data for a profile's new location and asks
// the worker to refresh every other profile tracking the same place.
func (s *Server) updateLocation(r *http.Request, profileID uuid.UUID, location string) (regional.Result, bool) {
	location = strings.TrimSpace(location)
	res, applied := s.regional.Update(r.Context(), profileID, location)

	if res.Degraded() && location != "" {
		s.logger.Warn("regional data degraded",
			"profile_id", profileID,
			"location", location,
			"status", res.Status,
			"error", res.Err,
			logField(r),
		)
	}

	if location != "" {
		// Non-fatal: the poller picks the location up on its next cycle.
		if err := s.worker.Enqueue(r.Context(), location); err != nil {
			s.logger.Debug("enqueue refresh failed", "location", location, "error", err, logField(r))
		}
	}

	return res, applied
}

// ─── GET /api/profile/:profileID/regional ─────────────────────────────────────

type regionalResponse struct {
	regional.State
	RegionalWarning string `json:"regional_warning,omitempty"`
}

func (s *Server) handleGetRegional(w http.ResponseWriter, r *http.Request) {
	state, ok := s.regional.Current(profileIDFrom(r.Context()))
	if !ok {
		respondErr(w, http.StatusNotFound, "no location set")
		return
	}

	respond(w, http.StatusOK, regionalResponse{
		State:           state,
		RegionalWarning: regionalWarning(state.Result),
	})
}
