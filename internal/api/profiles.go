package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
)

// ─── POST /api/profile ────────────────────────────────────────────────────────

type createProfileResponse struct {
	ProfileID string `json:"profile_id"`
	AnonToken string `json:"anon_token"`
}

// handleCreateProfile creates an anonymous profile for a new device. Called
// once on first launch; the request body is ignored.
//
// The anon_token is returned exactly once. It is sent as X-Anon-Token on all
// subsequent profile-scoped requests.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	// Generate a cryptographically random token. 32 bytes → 64 hex chars.
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("generate anon token: %w", err))
		return
	}
	anonToken := hex.EncodeToString(tokenBytes)

	profile, err := s.store.CreateProfile(r.Context(), hashToken(anonToken))
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create profile: %w", err))
		return
	}

	respond(w, http.StatusCreated, createProfileResponse{
		ProfileID: profile.ID.String(),
		AnonToken: anonToken,
	})
}

// ─── DELETE /api/profile/:profileID ───────────────────────────────────────────

// handleDeleteProfile is "clear all data": history, settings and the tracked
// location go. The profile and its token stay valid.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r.Context())

	if err := s.store.ClearProfileData(r.Context(), profileID); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("clear profile data: %w", err))
		return
	}
	s.regional.Forget(profileID)

	w.WriteHeader(http.StatusNoContent)
}
