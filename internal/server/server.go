// Package server exposes a docai engine over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brunobiangulo/docai"
)

// Config configures the HTTP server.
type Config struct {
	Addr        string `mapstructure:"addr"`
	APIKey      string `mapstructure:"api_key"`      // Bearer key; empty disables auth
	CORSOrigins string `mapstructure:"cors_origins"` // empty disables CORS headers

	// SourceDir confines POST /api/ingest. Defaults to "documentation".
	SourceDir string `mapstructure:"-"`
}

// Server serves the docai HTTP API.
type Server struct {
	cfg     Config
	handler http.Handler
}

// New builds the route table and middleware chain around e.
func New(e docai.Engine, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.SourceDir == "" {
		cfg.SourceDir = "documentation"
	}
	h := newHandler(e, cfg.SourceDir)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/reload", h.handleReload)
	mux.HandleFunc("POST /api/ask", h.handleAsk)
	mux.HandleFunc("GET /api/stats", h.handleStats)
	mux.HandleFunc("POST /api/ingest", h.handleIngest)
	mux.HandleFunc("GET /api/documents", h.handleListDocuments)
	mux.HandleFunc("GET /api/summary", h.handleSummary)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> request id -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = authMiddleware(cfg.APIKey, handler)
	handler = corsMiddleware(cfg.CORSOrigins, handler)
	handler = recoveryMiddleware(handler)

	return &Server{cfg: cfg, handler: handler}
}

// Handler returns the full HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
