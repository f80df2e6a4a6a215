// Package ratelimit bounds concurrency and request cadence for outgoing
// crawl work.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	// MaxConcurrency caps simultaneous units of work. Values below one are
	// raised to one.
	MaxConcurrency int
	// MaxRequestsPerSecond enforces a minimum cadence of 1/RPS between the
	// start times of successive admitted units. Zero or negative disables
	// the cadence check.
	MaxRequestsPerSecond float64
}

// Limiter admits units of work under a global concurrency cap and start-time
// cadence. One shared instance serves all callers in a process; the limiter
// itself never fails, it only defers.
type Limiter struct {
	sem  *semaphore.Weighted
	pace *rate.Limiter
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	concurrency := cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	pace := rate.NewLimiter(rate.Inf, 1)
	if cfg.MaxRequestsPerSecond > 0 {
		pace = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), 1)
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(concurrency)),
		pace: pace,
	}
}

// Do runs fn once a concurrency slot is free and the cadence allows a new
// start. Queued callers are released in submission order. The unit's error
// propagates unchanged and the slot is released on every path.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("rate limiter admission: %w", err)
	}
	defer l.sem.Release(1)

	if err := l.pace.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter cadence wait: %w", err)
	}
	return fn(ctx)
}

// Backoff sleeps min(baseDelay * 2^attempt, maxDelay), honoring the context.
// It is a caller-invoked delay primitive for reacting to rate-limit responses
// from a target server, not an automatic retry loop.
func (l *Limiter) Backoff(ctx context.Context, attempt int, baseDelay, maxDelay time.Duration) error {
	delay := baseDelay << uint(attempt)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	}
}
