package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
)

// MemoryStore is a process-local ResultCache and ComputationLog.
type MemoryStore struct {
	mu    sync.RWMutex
	cache map[string]models.CacheEntry
	log   []models.LogEntry
	opts  storeOptions
}

var (
	_ repository.ResultCache    = (*MemoryStore)(nil)
	_ repository.ComputationLog = (*MemoryStore)(nil)
)

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	return &MemoryStore{
		cache: make(map[string]models.CacheEntry),
		opts:  buildStoreOptions(opts),
	}
}

func (m *MemoryStore) IsFresh(_ context.Context, ticker string, maxAge time.Duration) (bool, error) {
	m.mu.RLock()
	e, ok := m.cache[normTicker(ticker)]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return m.opts.now().Sub(e.LastUpdated) < maxAge, nil
}

func (m *MemoryStore) Get(_ context.Context, ticker string) (*models.CacheEntry, error) {
	m.mu.RLock()
	e, ok := m.cache[normTicker(ticker)]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryStore) Upsert(_ context.Context, ticker string, result models.FinalResult) error {
	t := normTicker(ticker)
	e := models.CacheEntry{Ticker: t, Result: result, LastUpdated: m.opts.now().UTC()}
	m.mu.Lock()
	m.cache[t] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Invalidate(_ context.Context, ticker string) (bool, error) {
	t := normTicker(ticker)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cache[t]; !ok {
		return false, nil
	}
	delete(m.cache, t)
	return true, nil
}

func (m *MemoryStore) Stats(_ context.Context, freshWithin time.Duration) (models.CacheStats, error) {
	now := m.opts.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var st models.CacheStats
	for _, e := range m.cache {
		st.Total++
		if now.Sub(e.LastUpdated) < freshWithin {
			st.Fresh++
		}
		if st.OldestEntry == nil || e.LastUpdated.Before(*st.OldestEntry) {
			lu := e.LastUpdated
			st.OldestEntry = &lu
		}
	}
	return st, nil
}

func (m *MemoryStore) Append(_ context.Context, e models.LogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = m.opts.now()
	}
	e.Ticker = normTicker(e.Ticker)
	m.mu.Lock()
	e.ID = int64(len(m.log) + 1)
	m.log = append(m.log, e)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Trending(ctx context.Context, limit int) ([]models.TickerCount, error) {
	return m.TrendingSince(ctx, time.Time{}, limit)
}

func (m *MemoryStore) TrendingSince(_ context.Context, since time.Time, limit int) ([]models.TickerCount, error) {
	counts := make(map[string]int64)
	m.mu.RLock()
	for _, e := range m.log {
		if !e.Timestamp.Before(since) {
			counts[e.Ticker]++
		}
	}
	m.mu.RUnlock()
	return rankCounts(counts, limit), nil
}

func (m *MemoryStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, e := range m.log {
		if !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }

// rankCounts orders by count descending, then ticker ascending.
func rankCounts(counts map[string]int64, limit int) []models.TickerCount {
	out := make([]models.TickerCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, models.TickerCount{Ticker: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ticker < out[j].Ticker
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
