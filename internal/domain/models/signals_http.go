package models

import "time"

// Requests for the signal HTTP endpoints. Defined in domain for consistency and reuse.

type AnalyzeRequest struct {
	Ticker       string `param:"ticker" json:"ticker" validate:"required,ticker"`
	ForceRefresh bool   `query:"force_refresh" json:"force_refresh"`
}

type TickerRequest struct {
	Ticker string `param:"ticker" json:"ticker" validate:"required,ticker"`
}

type TrendingRequest struct {
	Limit int `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=100"`
}

type PerformanceRequest struct {
	Since string `query:"since" json:"since"`
	Top   int    `query:"top" json:"top" default:"5" validate:"gte=1,lte=50"`
}

type CacheStatsRequest struct {
	FreshMinutes int `query:"fresh_minutes" json:"fresh_minutes" default:"60" validate:"gte=1,lte=10080"`
}

type BatchRequest struct {
	Tickers string `query:"tickers" json:"tickers" validate:"required"`
}

// BatchItem is one ticker's cache-only lookup result.
type BatchItem struct {
	Score  *float64 `json:"score,omitempty"`
	Signal string   `json:"signal"`
	Source string   `json:"source"`
	Error  string   `json:"error,omitempty"`
}

// Analysis is the cache-gated response of Analyze.
type Analysis struct {
	Ticker   string      `json:"ticker"`
	Source   string      `json:"source"` // "cache" or "live"
	CachedAt *time.Time  `json:"cached_at,omitempty"`
	Result   FinalResult `json:"result"`
}

const (
	SourceCache        = "cache"
	SourceLive         = "live"
	SourceNeedsRefresh = "needs_refresh"
	SourceInvalid      = "invalid"
)
