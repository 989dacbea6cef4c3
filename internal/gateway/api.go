package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/flemzord/reaper/internal/core"
	"github.com/flemzord/reaper/internal/expire"
	"github.com/flemzord/reaper/internal/queue"
)

// maxBodyBytes bounds admin request bodies.
const maxBodyBytes = 64 << 10

// ExpireRequest is the body of POST /api/expire.
type ExpireRequest struct {
	// Mode is one of "", "sweep", "delete", "user" or "hook".
	Mode   string `json:"mode"`
	UserID int64  `json:"user_id"`
	Hook   string `json:"hook"`
}

// ExpireResponse reports the queue entry created for an ExpireRequest.
type ExpireResponse struct {
	ID   string   `json:"id"`
	Kind string   `json:"kind"`
	Args []string `json:"args"`
}

// handleTriggerExpire enqueues one expire request.
func (g *Gateway) handleTriggerExpire() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.trigger == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "expire trigger not available"})
			return
		}

		var body ExpireRequest
		if r.ContentLength != 0 {
			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&body); err != nil {
				g.metrics.RecordRejected()
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
				return
			}
		}

		req, err := expire.BuildRequest(body.Mode, body.UserID, body.Hook)
		if err != nil {
			g.metrics.RecordRejected()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		e, err := g.trigger.Enqueue(r.Context(), req)
		if err != nil {
			g.logger.Error("gateway: enqueue expire request failed", "kind", req.Kind(), "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "enqueue failed"})
			return
		}

		g.metrics.RecordTrigger()
		g.logger.Info("gateway: expire request enqueued", "id", e.ID, "kind", req.Kind())
		args := e.Args
		if args == nil {
			args = []string{}
		}
		writeJSON(w, http.StatusAccepted, ExpireResponse{ID: e.ID, Kind: req.Kind(), Args: args})
	}
}

// handleListQueue returns the most recent queue entries. ?limit= caps the
// result at the configured maximum.
func (g *Gateway) handleListQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.queue == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue not available"})
			return
		}

		limit := g.config.QueueListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, g.config.QueueListLimit)
		}

		entries, err := g.queue.List(r.Context(), limit)
		if err != nil {
			g.logger.Error("gateway: list queue failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
			return
		}
		if entries == nil {
			entries = []queue.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleListModules lists all compiled modules.
func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
