package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPulse/pkg/cache"
)

// Window is one fixed-window quota.
type Window struct {
	Name   string
	Limit  int64
	Period time.Duration
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed    bool
	Window     string
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// WindowLimiter enforces fixed-window quotas per client on top of a cache.Service,
// so the counters can live in process memory or in Redis.
type WindowLimiter struct {
	store   cache.Service
	windows []Window
	prefix  string
}

// NewWindowLimiter builds a limiter for the given windows. Windows with a non-positive
// limit are skipped.
func NewWindowLimiter(store cache.Service, windows ...Window) *WindowLimiter {
	ws := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Limit > 0 && w.Period > 0 {
			ws = append(ws, w)
		}
	}
	return &WindowLimiter{store: store, windows: ws, prefix: "ratelimit"}
}

// PerMinuteHour is the usual API quota: perMinute per minute and perHour per hour.
func PerMinuteHour(perMinute, perHour int64) []Window {
	return []Window{
		{Name: "minute", Limit: perMinute, Period: time.Minute},
		{Name: "hour", Limit: perHour, Period: time.Hour},
	}
}

// Allow counts one request for client against every window. The first exhausted
// window denies the request.
func (w *WindowLimiter) Allow(ctx context.Context, client string) (Decision, error) {
	out := Decision{Allowed: true, Remaining: -1}
	for _, win := range w.windows {
		key := cache.GenerateKeyWithParams(w.prefix, client, win.Name)
		n, err := w.store.Increment(ctx, key)
		if err != nil {
			return Decision{}, fmt.Errorf("ratelimit increment %s: %w", win.Name, err)
		}
		if n == 1 {
			if _, err := w.store.Expire(ctx, key, win.Period); err != nil {
				return Decision{}, fmt.Errorf("ratelimit expire %s: %w", win.Name, err)
			}
		}
		remaining := win.Limit - n
		if remaining < 0 {
			remaining = 0
		}
		if n > win.Limit {
			ttl, err := w.store.TTL(ctx, key)
			if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
				return Decision{}, fmt.Errorf("ratelimit ttl %s: %w", win.Name, err)
			}
			if ttl <= 0 {
				ttl = win.Period
			}
			return Decision{Allowed: false, Window: win.Name, Limit: win.Limit, Remaining: 0, RetryAfter: ttl}, nil
		}
		if out.Remaining < 0 || remaining < out.Remaining {
			out.Window, out.Limit, out.Remaining = win.Name, win.Limit, remaining
		}
	}
	return out, nil
}
