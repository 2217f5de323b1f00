package providers

import (
	"context"
	"fmt"

	"MarketPulse/internal/domain/models"
	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/pkg/config"
)

type HTTPSentimentProvider struct {
	base *HTTPBase
	path string
}

func NewHTTPSentimentProvider(cfg *config.Config, base *HTTPBase) *HTTPSentimentProvider {
	return &HTTPSentimentProvider{base: base, path: cfg.Providers.Paths.Sentiment}
}

func (p *HTTPSentimentProvider) Sentiment(ctx context.Context, ticker string) (models.SentimentReading, error) {
	var raw payload
	if err := p.base.GetJSON(ctx, "sentiment", tickerPath(p.path, ticker), &raw); err != nil {
		return models.SentimentReading{}, fmt.Errorf("fetch sentiment: %w", err)
	}
	return parseSentiment(raw)
}

// parseSentiment accepts a zero-mention reading with no average; it scores as neutral.
func parseSentiment(raw payload) (models.SentimentReading, error) {
	var s models.SentimentReading
	mentions, hasMentions, err := raw.number("daily mentions", "mentions", "mention volume")
	if err != nil {
		return s, err
	}
	avg, hasAvg, err := raw.number("average sentiment", "sentiment score", "sentiment")
	if err != nil {
		return s, err
	}
	if !hasAvg && !(hasMentions && mentions == 0) {
		return s, fmt.Errorf("field average sentiment missing")
	}
	if avg < -1 || avg > 1 {
		return s, fmt.Errorf("average sentiment %v outside [-1, 1]", avg)
	}
	s.AverageSentiment = avg
	s.MentionVolume = int(mentions)
	return s, nil
}

var _ domsvc.SentimentProvider = (*HTTPSentimentProvider)(nil)
