package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/market-recorder/internal/monitor"
	"github.com/web3-frozen/market-recorder/internal/store"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365
)

// HistoryLister reads archived records back, newest first.
type HistoryLister interface {
	ListRecords(ctx context.Context, source string, limit int) ([]store.ArchivedRecord, error)
}

// History serves archived records of {source}. Only mounted when the
// Postgres archive is configured.
func History(engine *monitor.Engine, archive HistoryLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := chi.URLParam(r, "source")
		if _, ok := engine.Collector(source); !ok {
			writeError(w, http.StatusNotFound, "unknown source")
			return
		}

		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		records, err := archive.ListRecords(r.Context(), source, limit)
		if err != nil {
			logger.Error("list archived records", "source", source, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read archive")
			return
		}
		if records == nil {
			records = []store.ArchivedRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}
