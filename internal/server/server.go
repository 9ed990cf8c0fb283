package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mapell/floornav/pkg/engine"
)

// Server holds the HTTP interface and the underlying routing engine.
type Server struct {
	Engine *engine.Engine

	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires the HTTP surface over an engine. The engine must be
// initialized before queries arrive, but the server can start first;
// queries during initialization fail fast with not-initialized.
func NewServer(eng *engine.Engine, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Engine: eng, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/route", s.handleRoute)
	mux.HandleFunc("GET /v1/status", s.handleStatus)

	// Recovery outermost so it catches everything below.
	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", handler)

	s.httpServer = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: rootMux,
	}
	return s
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
}
