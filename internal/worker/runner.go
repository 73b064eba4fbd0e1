// Package worker keeps tracked regional data fresh in the background. It is
// decoupled from the HTTP layer: the api package holds a worker.Enqueuer and
// calls Enqueue; it never imports the concrete Runner.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ─── INTERFACES ──────────────────────────────────────────────────────────────

// Enqueuer is the narrow interface the api package uses to ask for a
// location to be refreshed for every profile tracking it.
type Enqueuer interface {
	Enqueue(ctx context.Context, location string) error
}

// Refresher is implemented by *regional.Tracker.
type Refresher interface {
	Refresh(ctx context.Context, location string) (int, error)
	Locations() []string
}

// ErrQueueFull is returned by Enqueue when the buffer is saturated. The
// location will be picked up by the next poll.
var ErrQueueFull = errors.New("worker: queue is full, location will be picked up by poller")

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero-valued fields are
// replaced by DefaultRunnerConfig values.
type RunnerConfig struct {
	// Workers is the number of concurrent refresh goroutines. Default: 2.
	Workers int

	// PollInterval is how often every tracked location is re-enqueued.
	// Default: 1h.
	PollInterval time.Duration

	// JobTimeout is the per-refresh context deadline. Default: 30s.
	JobTimeout time.Duration

	// MaxRetries is the number of attempts per refresh before giving up
	// until the next poll. Default: 3.
	MaxRetries int
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      2,
		PollInterval: time.Hour,
		JobTimeout:   30 * time.Second,
		MaxRetries:   3,
	}
}

// Runner manages a pool of refresh goroutines fed by an in-process channel
// (fast path, after a location update) and by a periodic poll of every
// tracked location.
type Runner struct {
	refresher Refresher
	cfg       RunnerConfig
	logger    *slog.Logger

	// backoff returns the wait before retry attempt n (1-based).
	backoff func(attempt int) time.Duration

	queue chan string
	wg    sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{} // queued and not yet picked up
}

// NewRunner constructs a Runner. Call Start to begin processing.
func NewRunner(refresher Refresher, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}

	return &Runner{
		refresher: refresher,
		cfg:       cfg,
		logger:    logger,
		backoff: func(attempt int) time.Duration {
			// Exponential back-off: 2s, 4s, 8s …
			return time.Duration(1<<attempt) * time.Second
		},
		queue:   make(chan string, cfg.Workers*8),
		pending: make(map[string]struct{}),
	}
}

// Enqueue pushes a location onto the channel without blocking. A location
// already waiting in the queue is not queued twice.
func (r *Runner) Enqueue(_ context.Context, location string) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil
	}
	key := strings.ToLower(location)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[key]; ok {
		return nil
	}
	select {
	case r.queue <- location:
		r.pending[key] = struct{}{}
		r.logger.Debug("worker: enqueued location", "location", location)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool and the poller. It blocks until ctx is
// cancelled and every goroutine has returned. Call it in a goroutine from
// main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case location := <-r.queue:
			r.mu.Lock()
			delete(r.pending, strings.ToLower(location))
			r.mu.Unlock()
			r.runWithRetry(ctx, location, log)
		}
	}
}

// poll re-enqueues every tracked location on PollInterval.
func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	for _, location := range r.refresher.Locations() {
		if err := r.Enqueue(ctx, location); err != nil {
			// Queue full: the rest will be picked up next poll cycle.
			r.logger.Debug("worker: poll stopped early", "error", err)
			return
		}
	}
}

// runWithRetry refreshes a location up to MaxRetries times.
func (r *Runner) runWithRetry(ctx context.Context, location string, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		var n int
		n, lastErr = r.refresher.Refresh(jobCtx, location)
		cancel()

		if lastErr == nil {
			log.Debug("worker: refreshed location", "location", location, "profiles", n, "attempt", attempt)
			return
		}

		log.Warn("worker: refresh attempt failed",
			"location", location,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.backoff(attempt)):
			}
		}
	}

	log.Error("worker: giving up on location until next poll", "location", location, "error", lastErr)
}
