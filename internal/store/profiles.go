package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Profile is an anonymous client identity. Only the SHA-256 of the client's
// token is kept; the raw token is handed out once at creation.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrProfileExists is returned if CreateProfile would overwrite an existing
// profile. With random UUIDs this only happens on a generator fault.
var ErrProfileExists = errors.New("store: profile already exists")

// CreateProfile registers a new profile for tokenHash.
func (s *Store) CreateProfile(ctx context.Context, tokenHash string) (Profile, error) {
	p := Profile{
		ID:        uuid.New(),
		TokenHash: tokenHash,
		CreatedAt: s.now().UTC(),
	}
	err := s.kv.Update(ctx, profileKey(p.ID), func(current []byte) ([]byte, error) {
		if current != nil {
			return nil, ErrProfileExists
		}
		return json.Marshal(p)
	})
	if err != nil {
		return Profile{}, fmt.Errorf("CreateProfile: %w", err)
	}
	return p, nil
}

// GetProfile loads a profile by ID, or returns ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (Profile, error) {
	raw, err := s.kv.Get(ctx, profileKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("GetProfile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("GetProfile: decode: %w", err)
	}
	return p, nil
}
