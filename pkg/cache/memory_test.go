package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, opts ...MemoryOption) (*MemoryCache, *testClock) {
	clk := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(append([]MemoryOption{WithMemoryClock(clk.Now)}, opts...)...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc, clk
}

func TestMemoryCache_SetGetJSON(t *testing.T) {
	mc, _ := newTestCache(t)
	ctx := context.Background()

	type reading struct {
		Value float64 `json:"value"`
	}
	require.NoError(t, mc.Set(ctx, "vix", reading{Value: 21.5}, time.Minute))

	var got reading
	require.NoError(t, mc.Get(ctx, "vix", &got))
	assert.Equal(t, 21.5, got.Value)

	require.NoError(t, mc.Set(ctx, "s", "plain", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "plain", s)
}

func TestMemoryCache_Expiry(t *testing.T) {
	mc, clk := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))

	ttl, err := mc.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	clk.Advance(time.Minute)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = mc.TTL(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_IncrementResetsAfterExpiry(t *testing.T) {
	mc, clk := newTestCache(t)
	ctx := context.Background()

	n, err := mc.Increment(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	ok, err := mc.Expire(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = mc.Increment(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var raw string
	require.NoError(t, mc.Get(ctx, "c", &raw))
	assert.Equal(t, "2", raw)

	clk.Advance(61 * time.Second)
	n, err = mc.Increment(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryCache_IncrementNonCounter(t *testing.T) {
	mc, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	_, err := mc.Increment(ctx, "k")
	assert.Error(t, err)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc, clk := newTestCache(t, WithMemoryMaxSize(2))
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Hour))
	clk.Advance(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Hour))
	clk.Advance(time.Second)
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	clk.Advance(time.Second)
	require.NoError(t, mc.Set(ctx, "c", "3", time.Hour))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &s))
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "vix:latest", GenerateKey("vix", "latest"))
	assert.Equal(t, "rl:1.2.3.4:minute:7", GenerateKeyWithParams("rl", "1.2.3.4", "minute", 7))
}
