package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Entity endpoints
		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Get("/stats", s.handleEntityStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetEntity)
				r.Delete("/", s.handleDeleteEntity)
				r.Get("/history", s.handleEntityHistory)
			})
		})

		// Listener switch
		r.Route("/listener", func(r chi.Router) {
			r.Get("/", s.handleGetListener)
			r.Put("/", s.handleSetListener)
		})

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          s.version,
		"entities":         s.registry.Count(),
		"listener_running": s.listener.IsRunning(),
	})
}
