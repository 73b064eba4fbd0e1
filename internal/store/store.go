// Package store persists per-profile state (symptom history, user settings,
// profile identity) as JSON blobs in a string-keyed KV engine.
//
// Every blob lives under one key, so a multi-record write is a
// read-modify-write of that key. KV.Update makes that cycle atomic, which is
// what keeps two concurrent appends from losing one another.
//
// Dependency rule: store imports assess only. It never imports api, regional,
// or worker.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a key (or the entity stored under it) does not
// exist.
var ErrNotFound = errors.New("store: not found")

// KV is the narrow key-value contract the Store needs. Values are opaque to
// the engine but are always valid JSON, so a JSONB column can hold them.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set creates or replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Update atomically replaces the value for key with fn(current). current
	// is nil when the key does not exist. Returning a nil slice from fn
	// deletes the key; returning an error aborts without writing.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// Store groups the per-profile operations. The operation files (history.go,
// settings.go, profiles.go) attach methods to this type.
type Store struct {
	kv  KV
	now func() time.Time
}

// New creates a Store on top of an already-open KV engine.
func New(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// KV exposes the underlying engine for callers that need raw access (health
// checks, tests).
func (s *Store) KV() KV {
	return s.kv
}

// ─── KEYS ────────────────────────────────────────────────────────────────────

// Key suffixes match the names the mobile client used for its local storage.
const (
	historySuffix  = "SYMPTOM_HISTORY"
	settingsSuffix = "USER_SETTINGS"
)

func profileKey(id uuid.UUID) string {
	return "profile:" + id.String()
}

func historyKey(id uuid.UUID) string {
	return profileKey(id) + ":" + historySuffix
}

func settingsKey(id uuid.UUID) string {
	return profileKey(id) + ":" + settingsSuffix
}
