// Package listener serves the HTTP API and a gRPC health endpoint on one TCP
// port. Connections are split by cmux: HTTP/2 with content-type
// application/grpc goes to gRPC, everything else to net/http.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Config tunes the HTTP side and the shutdown grace period.
type Config struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns production timeouts.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second, // the CDC fetch on a location update can be slow
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 20 * time.Second,
	}
}

// Server owns the http.Server, the grpc.Server and the health state shared
// between them.
type Server struct {
	cfg    Config
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// New builds a Server around handler. The gRPC side exposes
// grpc.health.v1.Health and server reflection.
func New(handler http.Handler, cfg Config, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		grpc:   gs,
		health: hs,
		logger: logger,
	}
}

// Serve accepts connections on l until ctx is cancelled, then marks the
// health service NOT_SERVING and drains both servers. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	m := cmux.New(l)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errc := make(chan error, 3)
	go func() {
		if err := s.grpc.Serve(grpcL); err != nil && !errors.Is(err, grpc.ErrServerStopped) && !isClosed(err) {
			errc <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := s.http.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !isClosed(err) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := m.Serve(); err != nil && !isClosed(err) {
			errc <- fmt.Errorf("cmux: %w", err)
		}
	}()

	s.logger.Info("server listening", "addr", l.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case serveErr = <-errc:
	}

	shutdownErr := s.shutdown(l)
	return errors.Join(serveErr, shutdownErr)
}

// shutdown flips health to NOT_SERVING, then gives in-flight requests up to
// ShutdownTimeout to finish.
func (s *Server) shutdown(l net.Listener) error {
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpc.Stop()
	}

	if err := l.Close(); err != nil && !isClosed(err) {
		errs = append(errs, fmt.Errorf("close listener: %w", err))
	}
	return errors.Join(errs...)
}

// Health exposes the health server so callers can flip individual service
// statuses.
func (s *Server) Health() *health.Server {
	return s.health
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, cmux.ErrListenerClosed)
}
