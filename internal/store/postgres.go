package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store mirrors collected records into Postgres. The JSON logs stay the
// source of truth; the archive is optional and written best-effort.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// ArchivedRecord is one row of the records table.
type ArchivedRecord struct {
	ID         int64           `json:"id"`
	Source     string          `json:"source"`
	CapturedAt time.Time       `json:"captured_at"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// InsertRecord stores rec as JSONB under source.
func (s *Store) InsertRecord(ctx context.Context, source string, capturedAt time.Time, rec any) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (source, captured_at, payload) VALUES ($1, $2, $3)`,
		source, capturedAt, payload)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// ListRecords returns the most recent records for source, newest first.
func (s *Store) ListRecords(ctx context.Context, source string, limit int) ([]ArchivedRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, captured_at, payload, created_at FROM records
		 WHERE source = $1 ORDER BY captured_at DESC, id DESC LIMIT $2`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []ArchivedRecord
	for rows.Next() {
		var r ArchivedRecord
		if err := rows.Scan(&r.ID, &r.Source, &r.CapturedAt, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
