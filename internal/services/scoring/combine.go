package scoring

import (
	"fmt"
	"math"

	"MarketPulse/internal/domain/models"
)

// Combination is the output of the signal combiner.
type Combination struct {
	RawSum float64
	Final  float64
	// Linear is an audit value and never drives classification.
	Linear float64
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Combine squashes the weighted z-scores into a final score in (0,100).
func (c Calibration) Combine(z models.ZScoreVector, w models.WeightVector, s models.ComponentScores) (Combination, error) {
	rawSum := z.Sentiment*w.Sentiment*c.Sensitivity +
		z.Gamma*w.Gamma*c.Sensitivity +
		z.Volume*w.Volume*c.Sensitivity +
		z.Valuation*w.Valuation*c.Sensitivity

	out := Combination{
		RawSum: rawSum,
		Final:  sigmoid(rawSum) * 100,
		Linear: s.Sentiment*w.Sentiment + s.Gamma*w.Gamma + s.Volume*w.Volume + s.Valuation*w.Valuation,
	}
	if math.IsNaN(out.Final) || out.Final <= 0 || out.Final >= 100 {
		return Combination{}, &models.StageError{
			Stage: models.StageScoring,
			Kind:  models.ErrComputation,
			Err:   fmt.Errorf("final score %v outside (0,100) for raw sum %v", out.Final, rawSum),
		}
	}
	if math.IsNaN(out.Linear) || math.IsInf(out.Linear, 0) {
		return Combination{}, &models.StageError{
			Stage: models.StageScoring,
			Kind:  models.ErrComputation,
			Err:   fmt.Errorf("linear score is not finite"),
		}
	}
	return out, nil
}
