// Package server exposes the scroll engine over HTTP: a websocket endpoint
// for live sessions, JSON endpoints for saved session reports, Prometheus
// metrics, and health probes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/promptwheel/promptwheel/internal/config"
	"github.com/promptwheel/promptwheel/internal/engine"
	"github.com/promptwheel/promptwheel/internal/health"
	"github.com/promptwheel/promptwheel/pkg/report"
)

// shutdownTimeout bounds graceful HTTP shutdown after ctx cancellation.
const shutdownTimeout = 10 * time.Second

// Server hosts the promptwheel HTTP and websocket API.
type Server struct {
	addr     string
	settings func() engine.Settings
	store    report.Store
	health   *health.Handler

	mu       sync.Mutex
	sessions map[string]*engine.Session
}

// Option configures a [Server].
type Option func(*Server)

// WithStore sets the report store used for persistence and the report API.
func WithStore(s report.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithHealth sets the health handler. Default: a handler with no readiness
// checks.
func WithHealth(h *health.Handler) Option {
	return func(srv *Server) { srv.health = h }
}

// New creates a Server listening on addr. settings is called once per new
// session so config hot-reload affects sessions created after a change.
func New(addr string, settings func() engine.Settings, opts ...Option) *Server {
	srv := &Server{
		addr:     addr,
		settings: settings,
		sessions: make(map[string]*engine.Session),
	}
	for _, o := range opts {
		o(srv)
	}
	if srv.health == nil {
		srv.health = health.New()
	}
	return srv
}

// Routes returns the HTTP mux with all endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/session", s.handleSession)
	mux.HandleFunc("GET /v1/reports", s.handleListReports)
	mux.HandleFunc("GET /v1/reports/{id}", s.handleGetReport)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", s.addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ApplyTuning pushes a hot-reloaded tuning change to every live session.
func (s *Server) ApplyTuning(t engine.Tuning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.ApplyTuning(t)
	}
	slog.Info("server: tuning applied to live sessions", "count", len(s.sessions))
}

// OnConfigChange adapts [Server.ApplyTuning] to the config watcher callback.
func (s *Server) OnConfigChange(_, cfg *config.Config) {
	s.ApplyTuning(cfg.Engine.Tuning())
}

func (s *Server) registerSession(sess *engine.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = sess
}

func (s *Server) unregisterSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// handleListReports serves GET /v1/reports with optional after, before
// (RFC 3339) and limit query parameters.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "report persistence is not configured", http.StatusNotImplemented)
		return
	}

	var opts report.ListOpts
	q := r.URL.Query()
	if v := q.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid after timestamp", http.StatusBadRequest)
			return
		}
		opts.After = t
	}
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid before timestamp", http.StatusBadRequest)
			return
		}
		opts.Before = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}

	reports, err := s.store.List(r.Context(), opts)
	if err != nil {
		slog.Error("server: list reports", "err", err)
		http.Error(w, "failed to list reports", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []report.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleGetReport serves GET /v1/reports/{id}.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "report persistence is not configured", http.StatusNotImplemented)
		return
	}

	id := r.PathValue("id")
	rep, ok, err := s.store.Get(r.Context(), id)
	if err != nil {
		slog.Error("server: get report", "session_id", id, "err", err)
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("server: encode response", "err", err)
	}
}
