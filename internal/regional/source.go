// Package regional fetches local influenza activity and turns it into the
// assess.Signal the evaluator consumes.
//
// Network failures never reach the evaluator. Callers receive a tagged Result
// (ok / fallback / failed) and must decide from Status whether to surface a
// degraded-data warning.
package regional

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nyashahama/fitcheck-backend/internal/assess"
)

// ErrNoData is returned by a Source when the upstream dataset has no rows at
// all for the query.
var ErrNoData = errors.New("regional: no data")

// Record is one row of the upstream dataset. Only the fields the service
// reads are decoded.
type Record struct {
	State         string `json:"state"`
	ActivityLevel string `json:"activity_level"`
	Trend         string `json:"trend,omitempty"`
	WeekEnding    string `json:"week_ending,omitempty"`
}

// Status tags how trustworthy a Result is.
type Status string

const (
	// StatusOK means the records came from the upstream dataset for the
	// requested location.
	StatusOK Status = "ok"

	// StatusFallback means the records are a substitute: national rows when
	// the location had none, or a synthetic record when the upstream failed.
	StatusFallback Status = "fallback"

	// StatusFailed means no usable data at all (e.g. the request was
	// cancelled). Records is empty.
	StatusFailed Status = "failed"
)

// Result is what a Source hands back. Err carries the underlying cause for
// fallback and failed results and is never serialised.
type Result struct {
	Status    Status    `json:"status"`
	Location  string    `json:"location"`
	Records   []Record  `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
	Err       error     `json:"-"`
}

// OK builds a live result.
func OK(location string, records []Record, at time.Time) Result {
	return Result{Status: StatusOK, Location: location, Records: records, FetchedAt: at}
}

// Fallback builds a degraded result with substitute records.
func Fallback(location string, records []Record, at time.Time, cause error) Result {
	return Result{Status: StatusFallback, Location: location, Records: records, FetchedAt: at, Err: cause}
}

// Failed builds a result with no data.
func Failed(location string, at time.Time, cause error) Result {
	return Result{Status: StatusFailed, Location: location, Records: []Record{}, FetchedAt: at, Err: cause}
}

// Degraded reports whether the caller should warn the user that regional
// data is estimated or missing.
func (r Result) Degraded() bool {
	return r.Status != StatusOK
}

// Signal converts the first record's activity level into an evaluator input.
// It returns nil when there is nothing usable, which the evaluator treats as
// a neutral multiplier.
func (r Result) Signal() *assess.Signal {
	if r.Status == StatusFailed || len(r.Records) == 0 {
		return nil
	}
	level, err := assess.ParseActivityLevel(r.Records[0].ActivityLevel)
	if err != nil || level == assess.ActivityUnknown {
		return nil
	}
	return &assess.Signal{ActivityLevel: level}
}

// MarshalJSON adds the isFallbackData marker older clients look for and a
// human-readable error string.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		IsFallbackData bool   `json:"isFallbackData"`
		Error          string `json:"error,omitempty"`
	}{
		plain:          plain(r),
		IsFallbackData: r.Status == StatusFallback,
	}
	if out.Records == nil {
		out.Records = []Record{}
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Source fetches regional activity for a location (a state name, abbreviation
// or zip code; empty means national).
type Source interface {
	Fetch(ctx context.Context, location string) (Result, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, location string) (Result, error)

func (f SourceFunc) Fetch(ctx context.Context, location string) (Result, error) {
	return f(ctx, location)
}
