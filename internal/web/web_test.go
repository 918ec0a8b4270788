package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcal/internal/config"
	"sheetcal/internal/journal"
	"sheetcal/internal/model"
	"sheetcal/internal/reconcile"
)

type fakeRunner struct {
	rep      *reconcile.Report
	err      error
	resetErr error
	runs     int
	resets   int
}

func (f *fakeRunner) Run(context.Context) (*reconcile.Report, error) {
	f.runs++
	return f.rep, f.err
}

func (f *fakeRunner) Reset(context.Context) error {
	f.resets++
	return f.resetErr
}

type fakeHistory struct {
	entries []journal.Entry
	calls   int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	f.calls++
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeHistory) Run(_ context.Context, runID string) ([]journal.Entry, error) {
	var out []journal.Entry
	for _, e := range f.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(config.DefaultConfig(), &fakeRunner{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRunReturnsReport(t *testing.T) {
	runner := &fakeRunner{rep: &reconcile.Report{RunID: "r1", Rows: 3, Counts: map[model.Kind]int{model.KindCreated: 1}}}
	s := NewServer(config.DefaultConfig(), runner, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/runs/last")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/run")
	require.Equal(t, http.StatusOK, rec.Code)
	var got reconcile.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 1, got.Counts[model.KindCreated])

	rec = do(t, h, http.MethodGet, "/api/runs/last")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"r1"`)

	rec = do(t, h, http.MethodGet, "/api/run")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 1, runner.runs)
}

func TestRunBusyIsConflict(t *testing.T) {
	s := NewServer(config.DefaultConfig(), &fakeRunner{err: reconcile.ErrBusy}, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusConflict, rec.Code)

	s = NewServer(config.DefaultConfig(), &fakeRunner{resetErr: reconcile.ErrBusy}, nil)
	rec = do(t, s.Handler(), http.MethodPost, "/api/reset")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRunFatalError(t *testing.T) {
	s := NewServer(config.DefaultConfig(), &fakeRunner{err: errors.New("sheet unreachable")}, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "sheet unreachable")
}

func TestReset(t *testing.T) {
	runner := &fakeRunner{}
	s := NewServer(config.DefaultConfig(), runner, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/api/reset")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.resets)
}

func TestOutcomes(t *testing.T) {
	hist := &fakeHistory{entries: []journal.Entry{
		{ID: 2, RunID: "r2", Result: model.Result{Row: 7, Kind: model.KindDeleted}},
		{ID: 1, RunID: "r1", Result: model.Result{Row: 6, Kind: model.KindCreated}},
	}}
	s := NewServer(config.DefaultConfig(), &fakeRunner{rep: &reconcile.Report{}}, hist)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/outcomes?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []journal.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].RunID)

	do(t, h, http.MethodGet, "/api/outcomes?limit=1")
	assert.Equal(t, 1, hist.calls, "second read is served from cache")

	do(t, h, http.MethodPost, "/api/run")
	do(t, h, http.MethodGet, "/api/outcomes?limit=1")
	assert.Equal(t, 2, hist.calls, "a run invalidates the cache")
}

func TestRunOutcomes(t *testing.T) {
	hist := &fakeHistory{entries: []journal.Entry{
		{ID: 3, RunID: "r2", Result: model.Result{Row: 7, Kind: model.KindDeleted}},
		{ID: 2, RunID: "r1", Result: model.Result{Row: 7, Kind: model.KindUpdated}},
		{ID: 1, RunID: "r1", Result: model.Result{Row: 6, Kind: model.KindCreated}},
	}}
	h := NewServer(config.DefaultConfig(), &fakeRunner{}, hist).Handler()

	rec := do(t, h, http.MethodGet, "/api/runs/r1")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []journal.Entry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got, 2)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs/nope").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs/last").Code, "no run yet")
}

func TestOutcomesWithoutJournal(t *testing.T) {
	s := NewServer(config.DefaultConfig(), &fakeRunner{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/outcomes")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := NewServer(cfg, &fakeRunner{rep: &reconcile.Report{}}, nil).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code)

	rec := do(t, h, http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/run", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStartServerStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, cfg, NewServer(cfg, &fakeRunner{}, nil)) }()
	cancel()
	assert.NoError(t, <-done)
}
