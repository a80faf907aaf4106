package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/narrator/internal/config"
	"github.com/dgnsrekt/narrator/internal/eventstore"
	"github.com/dgnsrekt/narrator/internal/narration"
)

// Controller is the narration controller as seen by the API.
type Controller interface {
	Start(ctx context.Context, doc narration.Document) error
	TogglePlayPause() error
	Stop() error
	SkipForward() error
	SkipBackward() error
	Snapshot() narration.Snapshot
	Subscribe(l narration.Listener) func()
}

// DocumentResolver loads a stored document for the given language.
type DocumentResolver func(ctx context.Context, id, language string) (narration.Document, error)

// EventSource reads the recorded timeline.
type EventSource interface {
	ListSessionEvents(ctx context.Context, sessionID string, limit int) ([]eventstore.Event, error)
	LatestSession(ctx context.Context) (eventstore.Session, error)
}

// Deps are the collaborators behind the routes. Only Controller is required.
type Deps struct {
	Controller Controller
	Documents  DocumentResolver
	Events     EventSource
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server handles HTTP API requests.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	deps   Deps
	hub    *hub
	unsub  func()
}

// New creates a new API server.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "api"),
		deps:   deps,
	}
	s.hub = newHub(s.logger)
	s.unsub = deps.Controller.Subscribe(s.hub.broadcast)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	// Status is read-only and polled by widgets, so it is public like healthz.
	mux.HandleFunc("GET /v1/narration", s.handleSnapshot)
	mux.HandleFunc("POST /v1/narration/start", s.withAuth(s.handleStart))
	mux.HandleFunc("POST /v1/narration/toggle", s.withAuth(s.handleCommand("toggle", s.deps.Controller.TogglePlayPause)))
	mux.HandleFunc("POST /v1/narration/stop", s.withAuth(s.handleCommand("stop", s.deps.Controller.Stop)))
	mux.HandleFunc("POST /v1/narration/skip-forward", s.withAuth(s.handleCommand("skip_forward", s.deps.Controller.SkipForward)))
	mux.HandleFunc("POST /v1/narration/skip-backward", s.withAuth(s.handleCommand("skip_backward", s.deps.Controller.SkipBackward)))
	mux.HandleFunc("GET /v1/narration/events", s.withAuth(s.handleEvents))
	mux.HandleFunc("GET /v1/narration/stream", s.withAuth(s.handleStream))
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}
	return mux
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and closes open streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.unsub()
	s.hub.close()
	return s.server.Shutdown(ctx)
}
