package scoring

import "MarketPulse/internal/domain/models"

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// Components maps normalized provider readings onto the four 0-100 factor scores.
// A put/call ratio of 1 is neutral; call-heavy flow scores higher.
func Components(raw models.RawMetrics) models.ComponentScores {
	return models.ComponentScores{
		Sentiment: clamp((raw.Sentiment + 1) * 50),
		Gamma:     clamp(raw.Gamma * 100),
		Volume:    clamp(100 - raw.PutCallRatio*50),
		Valuation: clamp(50 + raw.UpsidePercent),
	}
}
