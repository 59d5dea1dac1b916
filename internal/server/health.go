package server

import (
	"encoding/json"
	"net/http"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	ActiveRuns int    `json:"active_runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:     "healthy",
		Version:    s.version,
		ActiveRuns: s.deps.Registry.Active(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": s.version})
}
