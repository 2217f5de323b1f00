package providers

import (
	"context"
	"fmt"

	"MarketPulse/internal/domain/models"
	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/pkg/config"
)

type HTTPValuationProvider struct {
	base *HTTPBase
	path string
}

func NewHTTPValuationProvider(cfg *config.Config, base *HTTPBase) *HTTPValuationProvider {
	return &HTTPValuationProvider{base: base, path: cfg.Providers.Paths.Valuation}
}

func (p *HTTPValuationProvider) Valuation(ctx context.Context, ticker string) (models.Valuation, error) {
	var v models.Valuation
	var raw payload
	if err := p.base.GetJSON(ctx, "valuation", tickerPath(p.path, ticker), &raw); err != nil {
		return v, fmt.Errorf("fetch valuation: %w", err)
	}
	return parseValuation(raw)
}

func parseValuation(raw payload) (models.Valuation, error) {
	var v models.Valuation
	price, err := raw.required("current price", "price")
	if err != nil {
		return v, err
	}
	if price <= 0 {
		return v, fmt.Errorf("current price %v is not positive", price)
	}
	fair, hasFair, err := raw.number("fair value estimate", "fair value")
	if err != nil {
		return v, err
	}
	upside, hasUpside, err := raw.number("upside potential", "upside percent", "upside")
	if err != nil {
		return v, err
	}
	switch {
	case hasUpside:
	case hasFair:
		upside = (fair - price) / price * 100
	default:
		return v, fmt.Errorf("field upside potential missing")
	}
	if !hasFair {
		fair = price * (1 + upside/100)
	}

	v.CurrentPrice = price
	v.FairValue = fair
	v.UpsidePercent = upside
	v.Sector = raw.text("sector")
	return v, nil
}

var _ domsvc.ValuationProvider = (*HTTPValuationProvider)(nil)
