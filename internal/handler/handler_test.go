package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/market-recorder/internal/cache"
	"github.com/web3-frozen/market-recorder/internal/monitor"
	"github.com/web3-frozen/market-recorder/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSource struct{ err error }

func (s *stubSource) Name() string  { return "fear_greed" }
func (s *stubSource) Title() string { return "Fear & greed index" }
func (s *stubSource) Fetch(context.Context) (monitor.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &monitor.Sentiment{Timestamp: time.Now().UTC(), Value: 71, Classification: "Greed"}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func testEngine(t *testing.T, latest cache.Latest) *monitor.Engine {
	t.Helper()
	logger := quietLogger()
	log := store.NewJSONLog(filepath.Join(t.TempDir(), "fear_greed_data.json"), logger)
	e := monitor.NewEngine(logger, nil)
	e.Register(monitor.NewCollector(&stubSource{}, log, logger).WithCache(latest))
	return e
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name string
		deps map[string]Pinger
		want int
	}{
		{"no deps", nil, http.StatusOK},
		{"all up", map[string]Pinger{"redis": stubPinger{}, "postgres": stubPinger{}}, http.StatusOK},
		{"redis down", map[string]Pinger{"redis": stubPinger{errors.New("connection refused")}}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Ready(tt.deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLogFileMissingIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market_data.json")

	rec := httptest.NewRecorder()
	LogFile(path, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/market-data", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestLogFileServedVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market_data.json")
	content := "[\n  {\n    \"timestamp\": \"2026-10-18T00:00:00Z\"\n  }\n]"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	LogFile(path, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/market-data", nil))

	if rec.Body.String() != content {
		t.Errorf("body = %q, want file content", rec.Body.String())
	}
}

func TestLogFileReadError(t *testing.T) {
	rec := httptest.NewRecorder()
	LogFile(t.TempDir(), quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/market-data", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func latestRouter(e *monitor.Engine, latest cache.Latest) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/latest/{source}", Latest(e, latest, quietLogger()))
	return r
}

func TestLatest(t *testing.T) {
	latest := cache.NewMemory()
	e := testEngine(t, latest)
	router := latestRouter(e, latest)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/api/latest/unknown"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown source: status = %d, want 404", rec.Code)
	}
	if rec := get("/api/latest/fear_greed"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before first run: status = %d, want 503", rec.Code)
	}

	if _, err := e.RunCollector(context.Background(), "fear_greed"); err != nil {
		t.Fatalf("RunCollector: %v", err)
	}

	rec := get("/api/latest/fear_greed")
	if rec.Code != http.StatusOK {
		t.Fatalf("after run: status = %d, want 200", rec.Code)
	}
	var s monitor.Sentiment
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Value != 71 || s.Classification != "Greed" {
		t.Errorf("record = %+v", s)
	}
}

func TestStatus(t *testing.T) {
	e := testEngine(t, cache.NewMemory())
	h := Status(e)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("before first run: status = %d, want 204", rec.Code)
	}

	e.RunOnce(context.Background())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sources) != 1 || body.Sources[0] != "fear_greed" {
		t.Errorf("Sources = %v", body.Sources)
	}
	if body.LastRun == nil || len(body.LastRun.Outcomes) != 1 || body.LastRun.Outcomes[0].Error != "" {
		t.Errorf("LastRun = %+v", body.LastRun)
	}
	if !body.NextRun.After(time.Now()) {
		t.Errorf("NextRun = %v, want in the future", body.NextRun)
	}
}
