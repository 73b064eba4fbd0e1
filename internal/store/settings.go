package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Settings is the user's preferences object, stored as one JSON blob.
type Settings struct {
	Name          string `json:"name"`
	Age           string `json:"age"`
	ZipCode       string `json:"zipCode"`
	Notifications bool   `json:"notifications"`
	DarkMode      bool   `json:"darkMode"`
	DataSharing   bool   `json:"dataSharing"`
}

// DefaultSettings is what a profile that never saved settings sees.
func DefaultSettings() Settings {
	return Settings{Notifications: true}
}

// LoadSettings returns the saved settings, or ErrNotFound if the profile has
// never saved any.
func (s *Store) LoadSettings(ctx context.Context, profileID uuid.UUID) (Settings, error) {
	raw, err := s.kv.Get(ctx, settingsKey(profileID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Settings{}, ErrNotFound
		}
		return Settings{}, fmt.Errorf("LoadSettings: %w", err)
	}
	// Start from defaults so fields added later get sane values on old blobs.
	settings := DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("LoadSettings: decode: %w", err)
	}
	return settings, nil
}

// SaveSettings replaces the profile's settings.
func (s *Store) SaveSettings(ctx context.Context, profileID uuid.UUID, settings Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("SaveSettings: encode: %w", err)
	}
	if err := s.kv.Set(ctx, settingsKey(profileID), raw); err != nil {
		return fmt.Errorf("SaveSettings: %w", err)
	}
	return nil
}

// ClearProfileData removes both history and settings. The profile itself
// survives so the client's token keeps working.
func (s *Store) ClearProfileData(ctx context.Context, profileID uuid.UUID) error {
	var errs []error
	if err := s.kv.Delete(ctx, historyKey(profileID)); err != nil {
		errs = append(errs, err)
	}
	if err := s.kv.Delete(ctx, settingsKey(profileID)); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("ClearProfileData: %w", err)
	}
	return nil
}
