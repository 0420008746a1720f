// Package web serves the locker's operator surface: status, live preview,
// activity feed, test publishing and metrics.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vusociu/datn/internal/broadcast"
	"github.com/vusociu/datn/internal/config"
	"github.com/vusociu/datn/internal/web/handlers"
	"github.com/vusociu/datn/internal/web/middleware"
)

// Bus is what the web surface needs from the message bus.
type Bus interface {
	handlers.Connectivity
	handlers.RawPublisher
}

// Deps are the collaborators the handlers read from.
type Deps struct {
	Engine    handlers.StatusSource
	Bus       Bus
	Frames    *broadcast.Broadcaster[[]byte]
	Events    *handlers.EventFeed
	Metrics   http.Handler // optional, served on /metrics
	Broker    string
	CameraURL string
}

// Server represents the web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new web server
func NewServer(cfg config.WebConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")
	r := chi.NewRouter()

	s := &Server{
		router: r,
		logger: logger,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.RequestLogger(&chiMiddleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		// no WriteTimeout: /stream and /api/v1/events stay open
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
