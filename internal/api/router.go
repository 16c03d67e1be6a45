package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rosematcha/ciphermaniac-sub006/internal/api/handlers"
	"github.com/rosematcha/ciphermaniac-sub006/internal/api/response"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning)
	s.router.Get("/healthz", s.healthCheck)

	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		archetypeHandler := handlers.NewArchetypeHandler(s.service)
		r.Route("/archetypes", func(r chi.Router) {
			r.Get("/", archetypeHandler.ListArchetypes)
			r.Get("/{archetype}/report", archetypeHandler.GetReport)
			r.Get("/{archetype}/subset", archetypeHandler.GetSubset)
		})
	})
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status     string `json:"status"`
	Archetypes int    `json:"archetypes"`
	Uptime     string `json:"uptime"`
}

// healthCheck returns the server health status.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	archetypes := 0
	if s.service != nil {
		archetypes = len(s.service.Archetypes())
	}
	response.JSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Archetypes: archetypes,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
	})
}
