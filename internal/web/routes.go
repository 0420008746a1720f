package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vusociu/datn/internal/web/handlers"
	"github.com/vusociu/datn/internal/web/static"
)

func (s *Server) setupRoutes(deps Deps) {
	statusHandler := handlers.NewStatusHandler(deps.Engine, deps.Bus, deps.Broker, deps.CameraURL)
	publishHandler := handlers.NewPublishHandler(deps.Bus, s.logger)
	streamHandler := handlers.NewStreamHandler(deps.Frames)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// Long-lived streams, no request timeout
	s.router.Get("/stream", streamHandler.Stream)
	s.router.Get("/api/v1/events", deps.Events.Events)

	s.router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Get("/status", statusHandler.Status)
		r.Post("/test_publish", publishHandler.Publish)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/status", statusHandler.Status)
			r.Get("/doors", statusHandler.Doors)
		})

		if deps.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", deps.Metrics)
		}
	})

	// Dashboard
	s.router.Handle("/*", http.FileServer(static.GetFileSystem()))
}
