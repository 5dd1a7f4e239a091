package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// System endpoints (no middleware)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	// API endpoints
	mux.HandleFunc("GET /select", s.withMiddleware(s.handleSelect))
	mux.HandleFunc("GET /results", s.withMiddleware(s.handleResults))
	mux.HandleFunc("GET /turbines", s.withMiddleware(s.handleTurbines))
	mux.HandleFunc("GET /turbines/{id}", s.withMiddleware(s.handleTurbine))
	mux.HandleFunc("GET /efficiency", s.withMiddleware(s.handleEfficiency))
	mux.HandleFunc("GET /charts/envelope", s.withMiddleware(s.handleEnvelopeChart))
	mux.HandleFunc("GET /charts/efficiency", s.withMiddleware(s.handleEfficiencyChart))

	return mux
}

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.Ready() {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "not_ready",
			Timestamp: time.Now().UTC(),
			Reason:    "record store is not reachable",
		})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ready", Timestamp: time.Now().UTC()})
}
