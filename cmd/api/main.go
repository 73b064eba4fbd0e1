package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nyashahama/fitcheck-backend/internal/api"
	"github.com/nyashahama/fitcheck-backend/internal/config"
	"github.com/nyashahama/fitcheck-backend/internal/listener"
	"github.com/nyashahama/fitcheck-backend/internal/regional"
	"github.com/nyashahama/fitcheck-backend/internal/store"
	"github.com/nyashahama/fitcheck-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "store", cfg.StoreDriver)

	// Root context cancelled by OS signal. Worker and listener both respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Store ─────────────────────────────────────────────────────────────────
	kv, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer closeKV()
	st := store.New(kv)
	logger.Info("store ready", "driver", cfg.StoreDriver)

	// ── Regional source ───────────────────────────────────────────────────────
	// CDC → Redis cache (optional) → fallback. The fallback is outermost so
	// neither an upstream nor a cache failure ever reaches the evaluator.
	var src regional.Source = regional.NewCDCClient(regional.CDCConfig{
		BaseURL:       cfg.CDCBaseURL,
		AppToken:      cfg.CDCAppToken,
		Timeout:       cfg.CDCTimeout,
		RatePerSecond: cfg.CDCRatePerSecond,
	})
	if cfg.RedisURL != "" {
		rdb, err := regional.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Not fatal: the cache bypasses Redis errors per request.
			logger.Warn("redis unreachable at startup", "error", err)
		}
		src = regional.WithCache(src, rdb, cfg.RegionalCacheTTL, logger)
		logger.Info("regional: caching in redis", "ttl", cfg.RegionalCacheTTL)
	}
	src = regional.WithFallback(src, logger)

	tracker := regional.NewTracker(src, logger)

	// ── Worker ────────────────────────────────────────────────────────────────
	runner := worker.NewRunner(tracker, worker.RunnerConfig{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.RefreshInterval,
		JobTimeout:   cfg.JobTimeout,
		MaxRetries:   cfg.MaxRetries,
	}, logger)

	// ── HTTP + gRPC ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		st,
		tracker,
		runner, // *Runner satisfies worker.Enqueuer
		api.Config{Env: cfg.Env},
		logger,
	)
	srv := listener.New(handler, listener.DefaultConfig(), logger)

	l, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// Start the worker pool in a background goroutine. It blocks until ctx is done.
	workerDone := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(workerDone)
	}()

	// Serve blocks until ctx is cancelled or a server dies, then drains.
	serveErr := srv.Serve(ctx, l)
	stop()
	<-workerDone

	if serveErr != nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	logger.Info("shutdown complete")
	return nil
}

// openKV opens the KV engine selected by STORE_DRIVER. The returned close
// func is always safe to call.
func openKV(ctx context.Context, cfg *config.Config) (store.KV, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.NewMemoryKV(), func() {}, nil
	case config.DriverPostgres:
		kv, err := store.OpenSQL(ctx, store.DialectPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { _ = kv.Close() }, nil
	default:
		kv, err := store.OpenSQL(ctx, store.DialectSQLite, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { _ = kv.Close() }, nil
	}
}
