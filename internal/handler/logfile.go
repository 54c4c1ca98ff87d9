package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
)

// LogFile serves a recorder log verbatim. A log that does not exist yet is
// an empty log and is served as [].
func LogFile(path string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			data = []byte("[]")
			err = nil
		}
		if err != nil {
			logger.Error("read log file", "path", path, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read data")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
