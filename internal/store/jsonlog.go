package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
)

// JSONLog is an append-only sequence of records kept as one pretty-printed
// JSON array on disk. Every append reads the whole file and writes it back.
// It is not safe for concurrent writers.
type JSONLog struct {
	path   string
	logger *slog.Logger
}

// NewJSONLog returns a log backed by path. The file is created on first append.
func NewJSONLog(path string, logger *slog.Logger) *JSONLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONLog{path: path, logger: logger}
}

// Path returns the backing file.
func (l *JSONLog) Path() string { return l.path }

// Append adds rec to the end of the log and returns the new record count.
// A missing file counts as an empty log; any other read or parse failure is
// returned and the file is left untouched.
func (l *JSONLog) Append(rec any) (int, error) {
	entries, err := l.load()
	if err != nil {
		return 0, err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	entries = append(entries, raw)

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode log %s: %w", l.path, err)
	}
	if err := os.WriteFile(l.path, out, 0o644); err != nil {
		return 0, fmt.Errorf("write log %s: %w", l.path, err)
	}

	l.logger.Info("record appended",
		"path", l.path,
		"records", len(entries),
		"size", humanize.Bytes(uint64(len(out))),
	)
	return len(entries), nil
}

// Len returns the number of records currently in the log.
func (l *JSONLog) Len() (int, error) {
	entries, err := l.load()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (l *JSONLog) load() ([]json.RawMessage, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log %s: %w", l.path, err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse log %s: %w", l.path, err)
	}
	if entries == nil {
		// a literal "null" is not a log
		return nil, fmt.Errorf("parse log %s: not a JSON array", l.path)
	}
	return entries, nil
}

// ReadLog decodes every record of the log at path. A missing file yields an
// empty slice.
func ReadLog[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse log %s: %w", path, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
