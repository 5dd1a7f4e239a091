// Package server exposes turbine selection over HTTP.
//
// Every API route passes through the same middleware chain: metrics, request
// id, panic recovery, rate limiting and request logging. The system routes
// /health, /ready and /metrics skip it.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/openclimatefix/turbine-selector/internal/selection"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string
	RateLimit       rate.Limit
	RateLimitBurst  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		RateLimit:       100,
		RateLimitBurst:  200,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Server is the HTTP front of a selection.Service.
type Server struct {
	config      Config
	svc         *selection.Service
	rateLimiter *rate.Limiter
	httpServer  *http.Server
	ready       atomic.Bool
}

// NewServer builds a Server. It reports not ready until SetReady(true).
// A non-positive rate limit disables limiting.
func NewServer(config Config, svc *selection.Service) *Server {
	limit := config.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	s := &Server{
		config:      config,
		svc:         svc,
		rateLimiter: rate.NewLimiter(limit, max(config.RateLimitBurst, 1)),
	}
	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.setupRoutes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// SetReady flips the readiness reported on /ready.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Ready reports the current readiness.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Start serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded by
// the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}
