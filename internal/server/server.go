// Package server exposes the dashboards, their sessions and the overlay
// tiles over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/civicmaps/internal/dashboard"
	"github.com/MeKo-Tech/civicmaps/internal/metrics"
	"github.com/MeKo-Tech/civicmaps/internal/pipeline"
)

// Config configures the HTTP API.
type Config struct {
	// CacheControl is sent with unfiltered tiles. Session-filtered tiles
	// are always "no-store".
	CacheControl  string
	RenderTimeout time.Duration
	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64
}

// Server routes API requests to the session manager and tile generator.
type Server struct {
	manager *dashboard.Manager
	tiles   *pipeline.Generator
	logger  *slog.Logger
	cfg     Config
}

// New creates a server. tiles may be nil, in which case tile routes
// answer 404.
func New(manager *dashboard.Manager, tiles *pipeline.Generator, cfg Config, logger *slog.Logger) *Server {
	if cfg.CacheControl == "" {
		cfg.CacheControl = "public, max-age=3600"
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{manager: manager, tiles: tiles, cfg: cfg, logger: logger}
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	s.handle(mux, "GET /api/dashboards", s.listDashboards)
	s.handle(mux, "GET /api/dashboards/{id}", s.getDashboard)
	s.handle(mux, "GET /api/dashboards/{id}/sources/{source}", s.getSource)
	s.handle(mux, "POST /api/dashboards/{id}/sessions", s.openSession)

	s.handle(mux, "GET /api/sessions/{sid}", s.getSession)
	s.handle(mux, "DELETE /api/sessions/{sid}", s.closeSession)
	s.handle(mux, "POST /api/sessions/{sid}/filters", s.applyFilter)
	s.handle(mux, "POST /api/sessions/{sid}/panel", s.updatePanel)
	s.handle(mux, "POST /api/sessions/{sid}/hover", s.hover)
	s.handle(mux, "POST /api/sessions/{sid}/leave", s.leave)

	s.handle(mux, "GET /tiles/{id}/{layer}/{z}/{x}/{file}", s.serveTile)

	return withCORS(accessLog(s.log())(mux))
}

// handle registers h under pattern with request metrics labelled by the
// pattern.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, instrument(pattern, h))
}
