package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeRefresher struct {
	mu        sync.Mutex
	locations []string
	calls     map[string]int
	failFirst int // number of calls that fail before succeeding
	done      chan string
}

func newFakeRefresher(locations ...string) *fakeRefresher {
	return &fakeRefresher{
		locations: locations,
		calls:     make(map[string]int),
		done:      make(chan string, 32),
	}
}

func (f *fakeRefresher) Refresh(_ context.Context, location string) (int, error) {
	f.mu.Lock()
	f.calls[location]++
	n := f.calls[location]
	f.mu.Unlock()
	if n <= f.failFirst {
		return 0, errors.New("upstream down")
	}
	f.done <- location
	return 1, nil
}

func (f *fakeRefresher) Locations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.locations...)
}

func (f *fakeRefresher) callCount(location string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[location]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("refreshed %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for refresh of %q", want)
	}
}

func TestRunner_EnqueueRefreshes(t *testing.T) {
	ref := newFakeRefresher()
	r := NewRunner(ref, RunnerConfig{Workers: 1, PollInterval: time.Hour}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() { r.Start(ctx); close(stopped) }()

	if err := r.Enqueue(ctx, "NY"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, ref.done, "NY")

	cancel()
	<-stopped
}

func TestRunner_RetriesThenSucceeds(t *testing.T) {
	ref := newFakeRefresher()
	ref.failFirst = 2
	r := NewRunner(ref, RunnerConfig{Workers: 1, MaxRetries: 3}, discardLogger())
	r.backoff = func(int) time.Duration { return time.Millisecond }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Start(ctx)

	if err := r.Enqueue(ctx, "CA"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, ref.done, "CA")
	if got := ref.callCount("CA"); got != 3 {
		t.Errorf("attempts: got %d, want 3", got)
	}
}

func TestRunner_PollEnqueuesTrackedLocations(t *testing.T) {
	ref := newFakeRefresher("NY", "TX")
	r := NewRunner(ref, RunnerConfig{Workers: 2, PollInterval: 10 * time.Millisecond}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Start(ctx)

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for !(seen["NY"] && seen["TX"]) {
		select {
		case loc := <-ref.done:
			seen[loc] = true
		case <-deadline:
			t.Fatalf("poller did not refresh all locations, saw %v", seen)
		}
	}
}

func TestRunner_EnqueueDeduplicatesAndRejectsWhenFull(t *testing.T) {
	// No Start: nothing drains the queue.
	r := NewRunner(newFakeRefresher(), RunnerConfig{Workers: 1}, discardLogger())
	ctx := context.Background()

	capacity := cap(r.queue)
	if err := r.Enqueue(ctx, "NY"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := r.Enqueue(ctx, " ny "); err != nil {
		t.Fatalf("duplicate Enqueue: %v", err)
	}
	if len(r.queue) != 1 {
		t.Fatalf("queue length: got %d, want 1", len(r.queue))
	}

	for i := 1; i < capacity; i++ {
		if err := r.Enqueue(ctx, string(rune('A'+i))+"-loc"); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	if err := r.Enqueue(ctx, "overflow"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if err := r.Enqueue(ctx, ""); err != nil {
		t.Errorf("empty location should be ignored, got %v", err)
	}
}
