// Package ratelimit implements fixed-window attempt counters on top of a
// Store that can atomically increment a key and arm its expiry.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store counts hits per key within a window.
//
// Hit increments key and, when the increment created the key, sets it to
// expire after window. It returns the new count and when the window resets.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Result is the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Count     int64
	Remaining int64
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, never negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter allows Limit hits per Window for each key.
type Limiter struct {
	store  Store
	prefix string
	limit  int64
	window time.Duration
}

// NewLimiter builds a limiter whose keys live under prefix.
func NewLimiter(store Store, prefix string, limit int64, window time.Duration) *Limiter {
	return &Limiter{store: store, prefix: prefix, limit: limit, window: window}
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	const op = "ratelimit.Allow"

	count, resetAt, err := l.store.Hit(ctx, l.prefix+key, l.window)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.limit,
		Count:     count,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Limit is the number of hits allowed per window.
func (l *Limiter) Limit() int64 {
	return l.limit
}

// Window is the window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}
