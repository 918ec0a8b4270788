package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"sheetcal/internal/config"
	"sheetcal/internal/journal"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/reconcile"
)

// Runner runs or resets the request rows.
type Runner interface {
	Run(ctx context.Context) (*reconcile.Report, error)
	Reset(ctx context.Context) error
}

// History lists journaled outcomes.
type History interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	Run(ctx context.Context, runID string) ([]journal.Entry, error)
}

// Server exposes the HTTP trigger and the outcome history.
type Server struct {
	cfg     *config.Config
	runner  Runner
	history History
	mux     *http.ServeMux

	// Last finished run, served by /api/runs/last.
	lastMu sync.RWMutex
	last   *reconcile.Report

	// Short-lived cache for /api/outcomes so polling clients don't hit
	// SQLite on every request.
	outcomesMu    sync.RWMutex
	outcomesCache *outcomesCache
}

type outcomesCache struct {
	limit     int
	entries   []journal.Entry
	updatedAt time.Time
}

const outcomesCacheTTL = 5 * time.Second

// NewServer constructs a new Server. history may be nil when the journal
// is disabled.
func NewServer(cfg *config.Config, runner Runner, history History) *Server {
	s := &Server{
		cfg:     cfg,
		runner:  runner,
		history: history,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="sheetcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config, s *Server) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/run", s.handleRun)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("GET /api/runs/last", s.handleLastRun)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleRunOutcomes)
	s.mux.HandleFunc("GET /api/outcomes", s.handleOutcomes)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleRun processes the rows once and returns the run report.
//
// POST /api/run
//   - 200 with the report when the run finished
//   - 409 when another run is in progress
//   - 500 when the rows could not be read
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	appLog.Info("api run request", "remote", r.RemoteAddr)

	rep, err := s.runner.Run(r.Context())
	switch {
	case errors.Is(err, reconcile.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil && rep == nil:
		appLog.Error("api run failed", err)
		writeError(w, http.StatusInternalServerError, "run failed: "+err.Error())
		return
	case err != nil:
		// Cancelled part way; the partial report is still useful.
		appLog.Error("api run interrupted", err, "run_id", rep.RunID)
	}

	s.lastMu.Lock()
	s.last = rep
	s.lastMu.Unlock()
	s.invalidateOutcomes()

	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	appLog.Info("api reset request", "remote", r.RemoteAddr)

	err := s.runner.Reset(r.Context())
	switch {
	case errors.Is(err, reconcile.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		appLog.Error("api reset failed", err)
		writeError(w, http.StatusInternalServerError, "reset failed: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

func (s *Server) handleLastRun(w http.ResponseWriter, _ *http.Request) {
	s.lastMu.RLock()
	rep := s.last
	s.lastMu.RUnlock()
	if rep == nil {
		writeError(w, http.StatusNotFound, "no run yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleRunOutcomes returns the journaled outcomes of one run in row order.
func (s *Server) handleRunOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	runID := r.PathValue("id")
	entries, err := s.history.Run(r.Context(), runID)
	if err != nil {
		appLog.Error("api run outcomes failed", err, "run_id", runID)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "unknown run")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleOutcomes returns journaled outcomes, newest first.
//
// GET /api/outcomes?limit=50
func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	s.outcomesMu.RLock()
	oc := s.outcomesCache
	s.outcomesMu.RUnlock()
	if oc != nil && oc.limit == limit && time.Since(oc.updatedAt) < outcomesCacheTTL {
		writeJSON(w, http.StatusOK, oc.entries)
		return
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		appLog.Error("api outcomes failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	s.outcomesMu.Lock()
	s.outcomesCache = &outcomesCache{limit: limit, entries: entries, updatedAt: time.Now()}
	s.outcomesMu.Unlock()

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) invalidateOutcomes() {
	s.outcomesMu.Lock()
	s.outcomesCache = nil
	s.outcomesMu.Unlock()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
