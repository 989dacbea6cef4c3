package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/reaper/internal/cron"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime  time.Duration    `json:"uptime_seconds"`
	Metrics MetricsSnapshot  `json:"metrics"`
	Pending int              `json:"pending"`
	Jobs    []cron.JobStatus `json:"jobs"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime: time.Since(g.startedAt).Truncate(time.Second),
			Jobs:   []cron.JobStatus{},
		}
		if g.metrics != nil {
			resp.Metrics = g.metrics.Snapshot()
		}

		if g.queue != nil {
			if n, err := g.queue.Pending(r.Context()); err == nil {
				resp.Pending = n
			}
		}

		if g.scheduler != nil {
			resp.Jobs = g.scheduler.Status()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
