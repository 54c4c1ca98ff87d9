// Package cache keeps the latest record of every source so the HTTP server
// can answer without re-reading the logs.
package cache

import (
	"context"
	"errors"
	"sync"
)

// ErrMiss is returned by Get when nothing was stored for the source yet.
var ErrMiss = errors.New("cache miss")

// Latest stores one encoded record per source.
type Latest interface {
	Put(ctx context.Context, source string, payload []byte) error
	Get(ctx context.Context, source string) ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// Memory is the in-process Latest used when Redis is not configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, source string, payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.mu.Lock()
	m.entries[source] = buf
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, source string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.entries[source]
	if !ok {
		return nil, ErrMiss
	}
	return p, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
