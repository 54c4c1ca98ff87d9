package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/market-recorder/internal/cache"
	"github.com/web3-frozen/market-recorder/internal/store"
)

type fakeArchive struct {
	records   []store.ArchivedRecord
	err       error
	lastLimit int
}

func (f *fakeArchive) ListRecords(_ context.Context, _ string, limit int) ([]store.ArchivedRecord, error) {
	f.lastLimit = limit
	return f.records, f.err
}

func TestHistory(t *testing.T) {
	archive := &fakeArchive{records: []store.ArchivedRecord{
		{ID: 2, Source: "fear_greed", CapturedAt: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), Payload: json.RawMessage(`{"value":71}`)},
	}}
	r := chi.NewRouter()
	r.Get("/api/history/{source}", History(testEngine(t, cache.NewMemory()), archive, quietLogger()))

	tests := []struct {
		path      string
		want      int
		wantLimit int
	}{
		{"/api/history/fear_greed", http.StatusOK, defaultHistoryLimit},
		{"/api/history/fear_greed?limit=5", http.StatusOK, 5},
		{"/api/history/fear_greed?limit=10000", http.StatusOK, maxHistoryLimit},
		{"/api/history/fear_greed?limit=-1", http.StatusBadRequest, 0},
		{"/api/history/unknown", http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		archive.lastLimit = 0
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.want)
		}
		if archive.lastLimit != tt.wantLimit {
			t.Errorf("%s: limit = %d, want %d", tt.path, archive.lastLimit, tt.wantLimit)
		}
	}

	archive.err = errors.New("connection reset")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/fear_greed", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("archive error: status = %d, want 500", rec.Code)
	}
}

func TestHistoryEmptyIsList(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/history/{source}", History(testEngine(t, cache.NewMemory()), &fakeArchive{}, quietLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/fear_greed", nil))
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty list", got)
	}
}
