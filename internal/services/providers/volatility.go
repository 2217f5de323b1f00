package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/internal/service/metrics"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/config"
	applogger "MarketPulse/pkg/logger"
)

var volatilityCacheKey = cache.GenerateKey("volatility", "index")

// HTTPVolatilityProvider reads the market-wide volatility index. The reading is the
// same for every ticker, so it is kept in store for ttl to spare the upstream.
type HTTPVolatilityProvider struct {
	base  *HTTPBase
	path  string
	store cache.Service
	ttl   time.Duration
	log   *applogger.Logger
}

// NewHTTPVolatilityProvider returns the index client. A nil store disables caching.
func NewHTTPVolatilityProvider(cfg *config.Config, base *HTTPBase, store cache.Service) *HTTPVolatilityProvider {
	return &HTTPVolatilityProvider{
		base:  base,
		path:  cfg.Providers.Paths.Volatility,
		store: store,
		ttl:   cfg.Providers.VolatilityTTL,
		log:   base.log,
	}
}

func (p *HTTPVolatilityProvider) VolatilityIndex(ctx context.Context) (float64, error) {
	if p.store != nil && p.ttl > 0 {
		var cached float64
		err := p.store.Get(ctx, volatilityCacheKey, &cached)
		if err == nil {
			metrics.VolatilityCacheHits.Inc()
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			p.log.Warn("volatility cache read failed", applogger.Error(err))
		}
	}

	var raw payload
	if err := p.base.GetJSON(ctx, "volatility", p.path, &raw); err != nil {
		return 0, fmt.Errorf("fetch volatility index: %w", err)
	}
	v, err := parseVolatility(raw)
	if err != nil {
		return 0, err
	}

	if p.store != nil && p.ttl > 0 {
		if err := p.store.Set(ctx, volatilityCacheKey, v, p.ttl); err != nil {
			p.log.Warn("volatility cache write failed", applogger.Error(err))
		}
	}
	return v, nil
}

func parseVolatility(raw payload) (float64, error) {
	v, err := raw.required("value", "vix", "close", "price")
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("volatility index %v is negative", v)
	}
	return v, nil
}

var _ domsvc.VolatilityIndexProvider = (*HTTPVolatilityProvider)(nil)
