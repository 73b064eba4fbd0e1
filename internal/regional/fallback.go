package regional

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Synthetic fallback values used when the upstream cannot be reached.
const (
	fallbackActivity = "moderate"
	fallbackTrend    = "increasing"
	nationalLabel    = "National"
)

// fallbackSource wraps a Source and converts every error into a tagged
// Fallback (or Failed, for a dead context) result.
type fallbackSource struct {
	inner  Source
	logger *slog.Logger
	now    func() time.Time
}

// WithFallback returns a Source whose Fetch never returns an error. When the
// inner source fails it logs the failure and returns a single synthetic
// record carrying the requested location and a "moderate" activity level.
func WithFallback(inner Source, logger *slog.Logger) Source {
	return &fallbackSource{inner: inner, logger: logger, now: time.Now}
}

func (f *fallbackSource) Fetch(ctx context.Context, location string) (Result, error) {
	result, err := f.inner.Fetch(ctx, location)
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		f.logger.Info("regional: fetch abandoned", "location", location, "error", err)
		return Failed(location, f.now().UTC(), err), nil
	}

	f.logger.Warn("regional: fetch failed, using synthetic fallback",
		"location", location,
		"error", err,
	)
	return SyntheticFallback(location, f.now().UTC(), err), nil
}

// SyntheticFallback is the stand-in result for an unreachable upstream.
func SyntheticFallback(location string, at time.Time, cause error) Result {
	state := strings.TrimSpace(location)
	if state == "" {
		state = nationalLabel
	}
	return Fallback(location, []Record{{
		State:         state,
		ActivityLevel: fallbackActivity,
		Trend:         fallbackTrend,
	}}, at, cause)
}
