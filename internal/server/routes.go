package server

import (
	"encoding/json"
	"net/http"
	"os"
)

// registerRoutes sets up the operational routes that live outside the
// /api/pdf namespace.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status     string `json:"status"`
	Storage    string `json:"storage,omitempty"`
	ActiveJobs int    `json:"activeJobs,omitempty"`
}

// handleHealth returns basic server health.
// This returns OK if the HTTP server is responding.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	writeJSON(w, http.StatusOK, resp)
}

// handleReady returns readiness status including the file store.
// This returns OK only if the storage directory is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Storage: "ok", ActiveJobs: s.broker.Count()}

	if _, err := os.Stat(s.store.Dir()); err != nil {
		resp.Status = "degraded"
		resp.Storage = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
