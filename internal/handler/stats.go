package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/market-recorder/internal/cache"
	"github.com/web3-frozen/market-recorder/internal/monitor"
)

// Latest serves the most recent record of {source} from the cache.
func Latest(engine *monitor.Engine, latest cache.Latest, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := chi.URLParam(r, "source")
		if _, ok := engine.Collector(source); !ok {
			writeError(w, http.StatusNotFound, "unknown source")
			return
		}

		payload, err := latest.Get(r.Context(), source)
		if errors.Is(err, cache.ErrMiss) {
			writeError(w, http.StatusServiceUnavailable, "no data available yet")
			return
		}
		if err != nil {
			logger.Error("read latest record", "source", source, "error", err)
			writeError(w, http.StatusServiceUnavailable, "cache unavailable")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}

type statusResponse struct {
	Sources []string            `json:"sources"`
	NextRun time.Time           `json:"next_run"`
	LastRun *monitor.RunSummary `json:"last_run"`
}

// Status reports the schedule and the outcome of the last collection run.
func Status(engine *monitor.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last := engine.LastRun()
		if last == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{
			Sources: engine.SourceNames(),
			NextRun: engine.NextRun(time.Now()),
			LastRun: last,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
