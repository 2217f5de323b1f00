package scoring

import "MarketPulse/internal/domain/models"

// Normalize standardizes component scores against the calibration baseline.
func (c Calibration) Normalize(s models.ComponentScores) models.ZScoreVector {
	return models.ZScoreVector{
		Sentiment: (s.Sentiment - c.Means.Sentiment) / c.Stds.Sentiment,
		Gamma:     (s.Gamma - c.Means.Gamma) / c.Stds.Gamma,
		Volume:    (s.Volume - c.Means.Volume) / c.Stds.Volume,
		Valuation: (s.Valuation - c.Means.Valuation) / c.Stds.Valuation,
	}
}
