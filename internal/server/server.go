// Package server exposes the rendered state over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/server/handler"
	"github.com/alanyoungcy/bookviz/internal/server/middleware"
	"github.com/alanyoungcy/bookviz/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// Limiter, when set, caps each client IP at RateLimit requests per
	// RateWindow.
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates everything the server routes to. Hub and Metrics are
// optional.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Frames   *handler.FrameHandler
	Warnings *handler.WarningHandler
	Pipeline *handler.PipelineHandler
	Hub      *ws.Hub
	Metrics  http.Handler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in middleware: CORS, then
// request logging, then rate limiting, then auth.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/warnings", handlers.Warnings.ListWarnings)

	mux.HandleFunc("GET /api/frames/{symbol...}", handlers.Frames.GetFrame)
	mux.HandleFunc("GET /api/tickers/{symbol...}", handlers.Frames.GetTicker)

	mux.HandleFunc("POST /api/pipeline/{symbol...}", handlers.Pipeline.TriggerPipeline)
	mux.HandleFunc("PUT /api/symbols/{symbol...}", handlers.Pipeline.Subscribe)
	mux.HandleFunc("DELETE /api/symbols/{symbol...}", handlers.Pipeline.Unsubscribe)
	mux.HandleFunc("POST /api/shutdown", handlers.Pipeline.Shutdown)

	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	if handlers.Hub != nil {
		mux.HandleFunc("GET /ws", handlers.Hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
