package regional

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the regional data currently held for one profile.
type State struct {
	Location  string    `json:"location"`
	Result    Result    `json:"result"`
	UpdatedAt time.Time `json:"updated_at"`
	seq       uint64
}

// Tracker remembers each profile's location and the latest regional Result
// for it.
//
// Every Update takes a sequence number before it starts fetching. When the
// fetch returns, the result is stored only if no newer Update for that
// profile has started meanwhile, so a slow response for an old location can
// never overwrite a fresher one.
type Tracker struct {
	src    Source
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	seq    uint64
	latest map[uuid.UUID]uint64 // most recent sequence started per profile
	states map[uuid.UUID]State
}

// NewTracker returns an empty Tracker fetching through src.
func NewTracker(src Source, logger *slog.Logger) *Tracker {
	return &Tracker{
		src:    src,
		logger: logger,
		now:    time.Now,
		latest: make(map[uuid.UUID]uint64),
		states: make(map[uuid.UUID]State),
	}
}

// Update sets the profile's location and fetches regional data for it. The
// returned bool is false when a newer Update superseded this one; the caller
// still gets its own Result. An empty location clears the profile's state.
func (t *Tracker) Update(ctx context.Context, profileID uuid.UUID, location string) (Result, bool) {
	location = strings.TrimSpace(location)

	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.latest[profileID] = seq
	if location == "" {
		delete(t.states, profileID)
		t.mu.Unlock()
		return Result{}, true
	}
	t.mu.Unlock()

	result, err := t.src.Fetch(ctx, location)
	if err != nil {
		result = Failed(location, t.now().UTC(), err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest[profileID] != seq {
		t.logger.Debug("regional: dropping superseded update",
			"profile_id", profileID,
			"location", location,
			"seq", seq,
		)
		return result, false
	}
	t.states[profileID] = State{
		Location:  location,
		Result:    result,
		UpdatedAt: t.now().UTC(),
		seq:       seq,
	}
	return result, true
}

// Current returns the profile's held state, if any.
func (t *Tracker) Current(profileID uuid.UUID) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[profileID]
	return s, ok
}

// Forget drops the profile's state and invalidates any in-flight Update.
func (t *Tracker) Forget(profileID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.latest[profileID] = t.seq
	delete(t.states, profileID)
}

// Locations lists the distinct locations currently tracked, sorted.
func (t *Tracker) Locations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[string]struct{})
	out := make([]string, 0, len(t.states))
	for _, s := range t.states {
		key := strings.ToLower(s.Location)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s.Location)
	}
	sort.Strings(out)
	return out
}

// Refresh re-fetches location and applies the result to every profile that
// tracks it and has no newer Update in flight. A degraded result never
// replaces a live one. It returns how many profiles were updated.
func (t *Tracker) Refresh(ctx context.Context, location string) (int, error) {
	location = strings.TrimSpace(location)

	// Snapshot which profiles track this location, and at which sequence.
	t.mu.Lock()
	targets := make(map[uuid.UUID]uint64)
	for id, s := range t.states {
		if strings.EqualFold(s.Location, location) {
			targets[id] = s.seq
		}
	}
	t.mu.Unlock()

	if len(targets) == 0 {
		return 0, nil
	}

	result, err := t.src.Fetch(ctx, location)
	if err != nil {
		return 0, err
	}
	if result.Status == StatusFailed {
		return 0, fmt.Errorf("regional: refresh %q: %w", location, result.Err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	applied := 0
	for id, seq := range targets {
		current, ok := t.states[id]
		if !ok || t.latest[id] != seq || current.seq != seq {
			continue
		}
		if result.Degraded() && !current.Result.Degraded() {
			continue
		}
		current.Result = result
		current.UpdatedAt = t.now().UTC()
		t.states[id] = current
		applied++
	}
	return applied, nil
}
