package scoring

import "MarketPulse/internal/domain/models"

// RegimeReading is the detected regime with the reading it was derived from.
type RegimeReading struct {
	Regime    models.Regime
	Reading   float64
	Defaulted bool
}

// DetectRegime maps a volatility reading to a regime. Both thresholds are exclusive,
// so a reading exactly on either boundary is NORMAL.
func (c Calibration) DetectRegime(reading float64) RegimeReading {
	rr := RegimeReading{Regime: models.RegimeNormal, Reading: reading}
	switch {
	case reading > c.Regime.FearAbove:
		rr.Regime = models.RegimeFear
	case reading < c.Regime.ComplacencyBelow:
		rr.Regime = models.RegimeComplacency
	}
	return rr
}

// NeutralRegime is the reading used when the volatility provider is unavailable.
func (c Calibration) NeutralRegime() RegimeReading {
	rr := c.DetectRegime(c.Regime.NeutralReading)
	rr.Defaulted = true
	return rr
}

// WeightsFor returns the weight row for regime. Unknown regimes use NORMAL.
func (c Calibration) WeightsFor(r models.Regime) models.WeightVector {
	if w, ok := c.Weights[r]; ok {
		return w
	}
	return c.Weights[models.RegimeNormal]
}
