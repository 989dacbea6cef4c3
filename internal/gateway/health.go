package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"` // "ok" or "degraded"
	Store   string `json:"store"`  // "ok", "down" or "unknown"
	Pending int    `json:"pending"`
	Error   string `json:"error,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the store answers, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := HealthResponse{
			Status: "ok",
			Store:  "unknown",
		}

		if g.store != nil {
			if err := g.store.Ping(ctx); err != nil {
				resp.Status = "degraded"
				resp.Store = "down"
				resp.Error = err.Error()
			} else {
				resp.Store = "ok"
			}
		}

		if g.queue != nil && resp.Status == "ok" {
			n, err := g.queue.Pending(ctx)
			if err != nil {
				resp.Status = "degraded"
				resp.Error = err.Error()
			} else {
				resp.Pending = n
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
