package api

import (
	"net/http"

	"github.com/nyashahama/fitcheck-backend/internal/assess"
)

// ─── POST /api/evaluate ───────────────────────────────────────────────────────

type evaluateRequest struct {
	Symptoms assess.Report `json:"symptoms"`

	// ActivityLevel optionally supplies the regional signal directly
	// ("normal", "moderate", "high", "very high"). Omitted means neutral.
	ActivityLevel string `json:"activity_level"`
}

// handleEvaluate is the stateless evaluator: no profile, no history, no
// upstream fetch.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decode(w, r, &req) {
		return
	}

	if err := req.Symptoms.Validate(); err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}

	level, err := assess.ParseActivityLevel(req.ActivityLevel)
	if err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}

	var sig *assess.Signal
	if level != assess.ActivityUnknown {
		sig = &assess.Signal{ActivityLevel: level}
	}

	respond(w, http.StatusOK, assess.Evaluate(req.Symptoms, sig))
}
