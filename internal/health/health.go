// Package health provides HTTP liveness and readiness handlers.
//
//   - /healthz: liveness probe; returns 200 whenever the process serves HTTP.
//   - /readyz: readiness probe; returns 200 only when every registered
//     [Check] passes, e.g. the report database answering pings.
//
// Responses are JSON with a top-level "status" field ("ok" or "fail") and a
// "checks" map with per-check results.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds how long a single readiness probe may take.
const probeTimeout = 5 * time.Second

// Check is a named readiness probe. Probe returns nil when the dependency is
// healthy; it must respect context cancellation.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type response struct {
	Status   string            `json:"status"`
	UptimeMs int64             `json:"uptime_ms"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// Handler serves the health endpoints. Safe for concurrent use; the check
// list is fixed at construction.
type Handler struct {
	checks  []Check
	started time.Time
}

// New creates a [Handler] evaluating checks in order on each /readyz request.
func New(checks ...Check) *Handler {
	return &Handler{
		checks:  append([]Check(nil), checks...),
		started: time.Now(),
	}
}

// Healthz always reports ok: a process that answers HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{
		Status:   "ok",
		UptimeMs: time.Since(h.started).Milliseconds(),
	})
}

// Readyz reports ok only when every registered check passes. Each probe runs
// with a [probeTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.checks))
	ready := true

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Probe(ctx)
		cancel()

		if err != nil {
			results[c.Name] = "fail: " + err.Error()
			ready = false
		} else {
			results[c.Name] = "ok"
		}
	}

	res := response{
		Status:   "ok",
		UptimeMs: time.Since(h.started).Milliseconds(),
		Checks:   results,
	}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
