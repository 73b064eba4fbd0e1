package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nyashahama/fitcheck-backend/internal/regional"
	"github.com/nyashahama/fitcheck-backend/internal/store"
)

// ─── GET /api/profile/:profileID/settings ─────────────────────────────────────

// handleGetSettings returns saved settings, or the defaults when the profile
// never saved any.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.LoadSettings(r.Context(), profileIDFrom(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		settings = store.DefaultSettings()
	} else if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("load settings: %w", err))
		return
	}

	respond(w, http.StatusOK, settings)
}

// ─── PUT /api/profile/:profileID/settings ─────────────────────────────────────

type saveSettingsResponse struct {
	Settings        store.Settings   `json:"settings"`
	Regional        *regional.Result `json:"regional,omitempty"`
	RegionalWarning string           `json:"regional_warning,omitempty"`
}

// handleSaveSettings replaces the settings. A non-empty zip code also moves
// the profile's tracked location there.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r.Context())

	var settings store.Settings
	if !decode(w, r, &settings) {
		return
	}
	settings.ZipCode = strings.TrimSpace(settings.ZipCode)

	if err := s.store.SaveSettings(r.Context(), profileID, settings); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("save settings: %w", err))
		return
	}

	resp := saveSettingsResponse{Settings: settings}
	if settings.ZipCode != "" {
		res, _ := s.updateLocation(r, profileID, settings.ZipCode)
		resp.Regional = &res
		resp.RegionalWarning = regionalWarning(res)
	}

	respond(w, http.StatusOK, resp)
}
