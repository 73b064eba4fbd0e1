package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/fitcheck-backend/internal/assess"
)

// Record is one submitted assessment: the report, what the evaluator said,
// and when. Records are never mutated once appended.
type Record struct {
	ID       uuid.UUID             `json:"id"`
	Symptoms assess.Report         `json:"symptoms"`
	Result   assess.Recommendation `json:"result"`
	Date     time.Time             `json:"date"` // RFC 3339, UTC

	// Location is the zip/state the regional signal was fetched for, if any.
	Location string `json:"location,omitempty"`

	// RegionalStatus records whether the regional data was live ("ok"),
	// substituted ("fallback"), or missing. Empty when no location was set.
	RegionalStatus string `json:"regional_status,omitempty"`
}

// NewRecord stamps a fresh ID and timestamp on an evaluation result.
func (s *Store) NewRecord(report assess.Report, result assess.Recommendation) Record {
	return Record{
		ID:       uuid.New(),
		Symptoms: report,
		Result:   result,
		Date:     s.now().UTC(),
	}
}

// AppendRecord adds rec to the end of the profile's history.
//
// The read-modify-write runs inside KV.Update, so two submissions racing on
// the same profile both land. If AppendRecord fails the record is lost from
// durable storage; callers keeping their own session list must reconcile.
func (s *Store) AppendRecord(ctx context.Context, profileID uuid.UUID, rec Record) error {
	err := s.kv.Update(ctx, historyKey(profileID), func(current []byte) ([]byte, error) {
		records, err := decodeHistory(current)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		return json.Marshal(records)
	})
	if err != nil {
		return fmt.Errorf("AppendRecord: %w", err)
	}
	return nil
}

// LoadHistory returns the profile's records in storage (append) order. A
// profile with no history yields an empty slice and a nil error; a read or
// decode failure is returned as an error rather than an empty slice.
func (s *Store) LoadHistory(ctx context.Context, profileID uuid.UUID) ([]Record, error) {
	raw, err := s.kv.Get(ctx, historyKey(profileID))
	if errors.Is(err, ErrNotFound) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LoadHistory: %w", err)
	}
	records, err := decodeHistory(raw)
	if err != nil {
		return nil, fmt.Errorf("LoadHistory: %w", err)
	}
	return records, nil
}

// ClearHistory irreversibly removes every record for the profile.
func (s *Store) ClearHistory(ctx context.Context, profileID uuid.UUID) error {
	if err := s.kv.Delete(ctx, historyKey(profileID)); err != nil {
		return fmt.Errorf("ClearHistory: %w", err)
	}
	return nil
}

// SortNewestFirst orders records by Date descending, in place. Ties keep
// their storage order.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Date.After(records[b].Date)
	})
}

func decodeHistory(raw []byte) ([]Record, error) {
	if len(raw) == 0 {
		return []Record{}, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
