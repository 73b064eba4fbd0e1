package regional_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/fitcheck-backend/internal/regional"
)

// gatedSource blocks each Fetch for a location until release(location) is
// called, letting tests interleave requests deterministically.
type gatedSource struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
	levels  map[string]string
}

func newGatedSource(levels map[string]string) *gatedSource {
	return &gatedSource{
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
		levels:  levels,
	}
}

func (g *gatedSource) gate(location string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[location]
	if !ok {
		ch = make(chan struct{})
		g.gates[location] = ch
	}
	return ch
}

func (g *gatedSource) release(location string) { close(g.gate(location)) }

func (g *gatedSource) Fetch(ctx context.Context, location string) (regional.Result, error) {
	gate := g.gate(location)
	g.started <- location
	select {
	case <-gate:
	case <-ctx.Done():
		return regional.Result{}, ctx.Err()
	}
	return regional.OK(location, []regional.Record{{State: location, ActivityLevel: g.levels[location]}}, time.Now()), nil
}

func TestTracker_StaleResponseDoesNotOverwriteFresh(t *testing.T) {
	src := newGatedSource(map[string]string{"NY": "high", "CA": "very high"})
	tr := regional.NewTracker(src, discardLogger())
	profile := uuid.New()
	ctx := context.Background()

	type outcome struct {
		result  regional.Result
		applied bool
	}
	slow := make(chan outcome, 1)

	// First update (NY) starts and stalls upstream.
	go func() {
		r, ok := tr.Update(ctx, profile, "NY")
		slow <- outcome{r, ok}
	}()
	if got := <-src.started; got != "NY" {
		t.Fatalf("started %q, want NY", got)
	}

	// Second update (CA) starts and finishes first.
	src.release("CA")
	res, applied := tr.Update(ctx, profile, "CA")
	if !applied || res.Location != "CA" {
		t.Fatalf("fresh update: applied=%v location=%q", applied, res.Location)
	}

	// Now the stale NY response arrives.
	src.release("NY")
	stale := <-slow
	if stale.applied {
		t.Error("stale update must not be applied")
	}
	if stale.result.Location != "NY" {
		t.Errorf("superseded caller should still get its own result, got %q", stale.result.Location)
	}

	state, ok := tr.Current(profile)
	if !ok || state.Location != "CA" {
		t.Fatalf("current: got %+v ok=%v, want CA", state, ok)
	}
	if sig := state.Result.Signal(); sig == nil || sig.ActivityLevel != "very high" {
		t.Errorf("signal: got %v", sig)
	}
}

func TestTracker_EmptyLocationClears(t *testing.T) {
	src := &stubSource{result: liveResult("high")}
	tr := regional.NewTracker(src, discardLogger())
	profile := uuid.New()
	ctx := context.Background()

	if _, ok := tr.Update(ctx, profile, "NY"); !ok {
		t.Fatal("update not applied")
	}
	if _, ok := tr.Update(ctx, profile, "   "); !ok {
		t.Fatal("clear not applied")
	}
	if _, ok := tr.Current(profile); ok {
		t.Error("expected no state after clearing the location")
	}
	if src.calls != 1 {
		t.Errorf("empty location must not hit upstream, got %d calls", src.calls)
	}
}

func TestTracker_SourceErrorIsFailedResult(t *testing.T) {
	tr := regional.NewTracker(&stubSource{err: errors.New("down")}, discardLogger())
	profile := uuid.New()

	res, ok := tr.Update(context.Background(), profile, "NY")
	if !ok || res.Status != regional.StatusFailed {
		t.Errorf("got status %q applied=%v, want failed/true", res.Status, ok)
	}
	if res.Signal() != nil {
		t.Error("failed result must not produce a signal")
	}
}

func TestTracker_Locations(t *testing.T) {
	tr := regional.NewTracker(&stubSource{result: liveResult("normal")}, discardLogger())
	ctx := context.Background()
	tr.Update(ctx, uuid.New(), "NY")
	tr.Update(ctx, uuid.New(), "ny")
	tr.Update(ctx, uuid.New(), "CA")

	got := tr.Locations()
	if len(got) != 2 {
		t.Errorf("got %v, want two distinct locations", got)
	}
}

func TestTracker_Refresh(t *testing.T) {
	src := &stubSource{result: liveResult("normal")}
	tr := regional.NewTracker(src, discardLogger())
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	tr.Update(ctx, a, "NY")
	tr.Update(ctx, b, "NY")
	tr.Update(ctx, c, "CA")

	src.result = liveResult("very high")
	n, err := tr.Refresh(ctx, "NY")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 2 {
		t.Errorf("applied: got %d, want 2", n)
	}
	for _, id := range []uuid.UUID{a, b} {
		s, _ := tr.Current(id)
		if sig := s.Result.Signal(); sig == nil || sig.ActivityLevel != "very high" {
			t.Errorf("profile %s: signal %v", id, sig)
		}
	}
	s, _ := tr.Current(c)
	if sig := s.Result.Signal(); sig == nil || sig.ActivityLevel != "normal" {
		t.Errorf("CA profile should be untouched, got %v", sig)
	}
}

func TestTracker_RefreshKeepsLiveDataOverFallback(t *testing.T) {
	src := &stubSource{result: liveResult("high")}
	tr := regional.NewTracker(src, discardLogger())
	ctx := context.Background()
	profile := uuid.New()
	tr.Update(ctx, profile, "NY")

	src.result = regional.SyntheticFallback("NY", time.Now(), errors.New("down"))
	n, err := tr.Refresh(ctx, "NY")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 0 {
		t.Errorf("applied: got %d, want 0", n)
	}
	s, _ := tr.Current(profile)
	if s.Result.Status != regional.StatusOK {
		t.Errorf("status: got %q, want ok", s.Result.Status)
	}
}

func TestTracker_RefreshUntrackedLocationIsNoop(t *testing.T) {
	src := &stubSource{result: liveResult("high")}
	tr := regional.NewTracker(src, discardLogger())
	n, err := tr.Refresh(context.Background(), "TX")
	if err != nil || n != 0 || src.calls != 0 {
		t.Errorf("got n=%d err=%v calls=%d", n, err, src.calls)
	}
}

func TestTracker_ForgetInvalidatesInFlight(t *testing.T) {
	src := newGatedSource(map[string]string{"NY": "high"})
	tr := regional.NewTracker(src, discardLogger())
	profile := uuid.New()

	done := make(chan bool, 1)
	go func() {
		_, ok := tr.Update(context.Background(), profile, "NY")
		done <- ok
	}()
	<-src.started
	tr.Forget(profile)
	src.release("NY")

	if <-done {
		t.Error("update started before Forget must not be applied")
	}
	if _, ok := tr.Current(profile); ok {
		t.Error("expected no state after Forget")
	}
}
