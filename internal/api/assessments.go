package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/nyashahama/fitcheck-backend/internal/assess"
	"github.com/nyashahama/fitcheck-backend/internal/regional"
	"github.com/nyashahama/fitcheck-backend/internal/store"
)

// ─── POST /api/profile/:profileID/assessments ─────────────────────────────────

type createAssessmentResponse struct {
	Record          store.Record `json:"record"`
	RegionalWarning string       `json:"regional_warning,omitempty"`

	// Saved is false when the record could not be appended to history. The
	// recommendation is still valid; the client keeps it in its session list.
	Saved bool `json:"saved"`
}

// handleCreateAssessment evaluates a symptom report against the profile's
// current regional data and appends the result to history.
func (s *Server) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r.Context())

	var report assess.Report
	if !decode(w, r, &report) {
		return
	}
	if err := report.Validate(); err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}

	res, ok := s.currentRegional(r, profileID)

	var sig *assess.Signal
	if ok {
		sig = res.Signal()
	}
	recommendation := assess.Evaluate(report, sig)

	rec := s.store.NewRecord(report, recommendation)
	resp := createAssessmentResponse{Saved: true}
	if ok {
		rec.Location = res.Location
		rec.RegionalStatus = string(res.Status)
		resp.RegionalWarning = regionalWarning(res)
	}
	resp.Record = rec

	if err := s.store.AppendRecord(r.Context(), profileID, rec); err != nil {
		s.logger.Error("append assessment to history",
			"profile_id", profileID,
			"error", err,
			logField(r),
		)
		resp.Saved = false
	}

	respond(w, http.StatusCreated, resp)
}

// currentRegional returns the tracked Result for the profile. When nothing is
// tracked yet but saved settings carry a zip code, it fetches for that zip
// first. ok is false when the profile has no location at all.
func (s *Server) currentRegional(r *http.Request, profileID uuid.UUID) (regional.Result, bool) {
	if state, ok := s.regional.Current(profileID); ok {
		return state.Result, true
	}

	settings, err := s.store.LoadSettings(r.Context(), profileID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("load settings for regional lookup",
				"profile_id", profileID,
				"error", fmt.Errorf("assessment: %w", err),
				logField(r),
			)
		}
		return regional.Result{}, false
	}
	if settings.ZipCode == "" {
		return regional.Result{}, false
	}

	res, _ := s.updateLocation(r, profileID, settings.ZipCode)
	return res, true
}
