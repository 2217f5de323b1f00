package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"MarketPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New(0.001, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.Wait(ctx, "risk"))
	assert.NoError(t, l.Wait(ctx, "risk"))
	assert.Error(t, l.Wait(ctx, "risk"))
	// keys are independent
	assert.NoError(t, l.Wait(ctx, "sentiment"))
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	require.NoError(t, l.Wait(context.Background(), "valuation"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "valuation"))
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "x"))
	}
}

func TestWindowLimiter_MinuteQuota(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := cache.NewMemoryCache(cache.WithMemoryClock(clk.Now))
	defer store.Close()
	wl := NewWindowLimiter(store, PerMinuteHour(3, 5)...)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := wl.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := wl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "minute", d.Window)
	assert.Equal(t, int64(3), d.Limit)
	assert.Equal(t, time.Minute, d.RetryAfter)

	other, err := wl.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
	assert.Equal(t, int64(2), other.Remaining)

	clk.Advance(time.Minute)
	d, err = wl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestWindowLimiter_HourQuota(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := cache.NewMemoryCache(cache.WithMemoryClock(clk.Now))
	defer store.Close()
	wl := NewWindowLimiter(store, PerMinuteHour(30, 4)...)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		d, err := wl.Allow(ctx, "c")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		clk.Advance(2 * time.Minute)
	}
	d, err := wl.Allow(ctx, "c")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "hour", d.Window)
	assert.Equal(t, 52*time.Minute, d.RetryAfter)
}
