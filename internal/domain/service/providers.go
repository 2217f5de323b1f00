package service

import (
	"context"

	"MarketPulse/internal/domain/models"
)

// ValuationProvider returns price versus fair-value data for a ticker.
type ValuationProvider interface {
	Valuation(ctx context.Context, ticker string) (models.Valuation, error)
}

// RiskProvider returns options-derived risk readings for a ticker.
type RiskProvider interface {
	Risk(ctx context.Context, ticker string) (models.RiskProfile, error)
}

// SentimentProvider returns aggregated social sentiment for a ticker.
type SentimentProvider interface {
	Sentiment(ctx context.Context, ticker string) (models.SentimentReading, error)
}

// VolatilityIndexProvider returns the current market-wide volatility index reading.
type VolatilityIndexProvider interface {
	VolatilityIndex(ctx context.Context) (float64, error)
}
