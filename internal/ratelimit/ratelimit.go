// Package ratelimit enforces per-partner request budgets for the Verdict API.
//
// The strategy is a fixed bucket window: one counter per (caller, window
// start), incremented atomically through the cache layer's IncrWithTTL, so
// check-and-consume is a single primitive and two concurrent requests can
// never both slip under the limit. The counter key embeds the window start;
// a new window simply means a fresh key, and expiry handles cleanup.
//
// When the backing cache errors, the limiter fails closed, since admitting
// unmetered traffic is the worse failure mode.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/verdict-labs/verdict/internal/cache"
)

// DefaultWindow is the budget window length.
const DefaultWindow = time.Minute

// Result reports the outcome of a check-and-consume call.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// QuotaExceededError is returned by callers that promote a denial to an
// error. It carries the window reset time so clients know when to retry.
type QuotaExceededError struct {
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

// Limiter enforces fixed-window request budgets.
type Limiter struct {
	cache  cache.Cache
	window time.Duration
	now    func() time.Time // injectable for tests
}

// New creates a limiter over the given cache backend.
func New(c cache.Cache, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		cache:  c,
		window: window,
		now:    time.Now,
	}
}

// CheckAndConsume consumes one unit of callerKey's budget and reports
// whether the request is allowed. Denied requests still consume nothing
// beyond the counter bump that detected the overrun.
//
// A non-nil error means the backing store failed; Allowed is false in that
// case (fail closed) and the error should surface as a 5xx, not a 429.
func (l *Limiter) CheckAndConsume(ctx context.Context, callerKey string, limit int) (Result, error) {
	return l.ConsumeN(ctx, callerKey, limit, 1)
}

// ConsumeN consumes n units at once (used by batch calls, where a batch of
// k transactions counts as k requests).
func (l *Limiter) ConsumeN(ctx context.Context, callerKey string, limit, n int) (Result, error) {
	if n < 1 {
		n = 1
	}

	now := l.now()
	windowStart := now.Truncate(l.window)
	resetAt := windowStart.Add(l.window)
	key := cache.RateLimitKey(callerKey, windowStart.Unix())

	var count int64
	var err error
	for i := 0; i < n; i++ {
		count, err = l.cache.IncrWithTTL(ctx, key, l.window+time.Second)
		if err != nil {
			// Fail closed: deny rather than admit unmetered traffic.
			return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt},
				fmt.Errorf("rate limit check failed: %w", err)
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   int(count) <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}
