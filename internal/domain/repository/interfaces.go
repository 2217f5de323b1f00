package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// ResultCache keeps exactly one current result per ticker.
// Not-found paths never return an error.
type ResultCache interface {
	IsFresh(ctx context.Context, ticker string, maxAge time.Duration) (bool, error)
	Get(ctx context.Context, ticker string) (*models.CacheEntry, error)
	Upsert(ctx context.Context, ticker string, result models.FinalResult) error
	Invalidate(ctx context.Context, ticker string) (bool, error)
	Stats(ctx context.Context, freshWithin time.Duration) (models.CacheStats, error)
	Close() error
}

// ComputationLog is the append-only history of live computations.
type ComputationLog interface {
	Append(ctx context.Context, entry models.LogEntry) error
	Trending(ctx context.Context, limit int) ([]models.TickerCount, error)
	TrendingSince(ctx context.Context, since time.Time, limit int) ([]models.TickerCount, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Close() error
}

// SignalPublisher fans computed results out to downstream consumers.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, r *models.FinalResult) error
	Close() error
}

type Metrics interface {
	RecordComputation(regime, signal string)
	RecordCacheLookup(hit bool)
	RecordError(kind string)
	RecordFinalScore(ticker string, score float64)
	RecordLatency(op string, seconds float64)
}
