package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "market-recorder:latest:"

// Redis is a Latest backed by a Redis server, shared across restarts.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(redisURL, password string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// Put stores payload as the latest record of source (no expiry).
func (r *Redis) Put(ctx context.Context, source string, payload []byte) error {
	return r.rdb.Set(ctx, keyPrefix+source, payload, 0).Err()
}

func (r *Redis) Get(ctx context.Context, source string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, keyPrefix+source).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

// Close shuts down the Redis connection.
func (r *Redis) Close() error { return r.rdb.Close() }
