package providers

import (
	"context"
	"fmt"

	"MarketPulse/internal/domain/models"
	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/pkg/config"
)

type HTTPRiskProvider struct {
	base *HTTPBase
	path string
}

func NewHTTPRiskProvider(cfg *config.Config, base *HTTPBase) *HTTPRiskProvider {
	return &HTTPRiskProvider{base: base, path: cfg.Providers.Paths.Risk}
}

func (p *HTTPRiskProvider) Risk(ctx context.Context, ticker string) (models.RiskProfile, error) {
	var raw payload
	if err := p.base.GetJSON(ctx, "risk", tickerPath(p.path, ticker), &raw); err != nil {
		return models.RiskProfile{}, fmt.Errorf("fetch risk: %w", err)
	}
	return parseRisk(raw)
}

func parseRisk(raw payload) (models.RiskProfile, error) {
	var r models.RiskProfile
	pc, err := raw.required("put/call ratio", "put_call_ratio", "put/call")
	if err != nil {
		return r, err
	}
	if pc < 0 {
		return r, fmt.Errorf("put/call ratio %v is negative", pc)
	}
	g, err := raw.required("gamma sensitivity", "gamma")
	if err != nil {
		return r, err
	}
	iv, _, err := raw.percent("market fear (iv)", "implied volatility", "iv")
	if err != nil {
		return r, err
	}
	r.PutCallRatio = pc
	r.GammaSensitivity = g
	r.ImpliedVolatility = iv
	return r, nil
}

var _ domsvc.RiskProvider = (*HTTPRiskProvider)(nil)
