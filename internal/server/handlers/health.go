package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Served    uint64 `json:"served"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler reports liveness and how many completion requests were seen.
func (c *Completions) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:    "healthy",
		Served:    c.Served(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
