// Package retry runs an operation a fixed number of times with a fixed pause
// between attempts. Every failure is treated the same; there is no jitter and
// no exponential growth.
package retry

import (
	"context"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/web3-frozen/market-recorder/internal/metrics"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 60 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier holds the attempt cap and the pause between attempts.
type Retrier struct {
	attempts int
	delay    time.Duration
	logger   *slog.Logger
	sleep    SleepFunc
	onRetry  func(name string)
}

// New returns a Retrier making at most attempts calls with delay between
// them. Non-positive attempts fall back to DefaultAttempts.
func New(attempts int, delay time.Duration, logger *slog.Logger) *Retrier {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		attempts: attempts,
		delay:    delay,
		logger:   logger,
		sleep:    sleepCtx,
		onRetry:  countFetchRetry,
	}
}

func countFetchRetry(name string) {
	metrics.FetchRetriesTotal.WithLabelValues(name).Inc()
}

// WithOnRetry replaces what is counted on every non-final failure. By
// default it is metrics.FetchRetriesTotal labelled with the op name.
func (r *Retrier) WithOnRetry(fn func(name string)) *Retrier {
	if fn == nil {
		fn = func(string) {}
	}
	r.onRetry = fn
	return r
}

// WithSleep replaces the wait between attempts, for tests driving a fake clock.
func (r *Retrier) WithSleep(fn SleepFunc) *Retrier {
	r.sleep = fn
	return r
}

// Attempts returns the attempt cap.
func (r *Retrier) Attempts() int { return r.attempts }

// Delay returns the pause between attempts.
func (r *Retrier) Delay() time.Duration { return r.delay }

func (r *Retrier) backoff() goretry.Backoff {
	var b goretry.Backoff
	if r.delay > 0 {
		b = goretry.NewConstant(r.delay)
	} else {
		b = goretry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	return goretry.WithMaxRetries(uint64(r.attempts-1), b)
}

// Do calls op until it succeeds or the attempt cap is reached. The error of
// the final attempt is returned unchanged. Each non-final failure logs one
// progress line and waits the fixed delay. name labels logs and metrics.
func Do[T any](ctx context.Context, r *Retrier, name string, op func(ctx context.Context) (T, error)) (T, error) {
	b := r.backoff()
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		wait, stop := b.Next()
		if stop {
			var zero T
			return zero, err
		}

		r.logger.Warn("attempt failed, retrying",
			"source", name,
			"attempt", attempt,
			"max_attempts", r.attempts,
			"retry_in", wait.String(),
			"error", err,
		)
		r.onRetry(name)

		if serr := r.sleep(ctx, wait); serr != nil {
			var zero T
			return zero, serr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
