package scoring

import (
	"math"

	"MarketPulse/internal/domain/models"
)

// Classification is the label attached to a final score.
type Classification struct {
	Signal     models.Signal
	Confidence models.Confidence
	Annotation models.Annotation
}

type rule struct {
	signal     models.Signal
	confidence models.Confidence
	match      func(r models.Regime, s models.ComponentScores, final float64) bool
}

// rules are evaluated in order and the first match wins. Regime special cases
// come before the score bands.
var rules = []rule{
	{models.SignalCrisisOpportunity, models.ConfidenceHigh, func(r models.Regime, s models.ComponentScores, _ float64) bool {
		return r == models.RegimeFear && s.Gamma > 80
	}},
	{models.SignalFearTrap, models.ConfidenceHigh, func(r models.Regime, s models.ComponentScores, _ float64) bool {
		return r == models.RegimeFear && s.Sentiment > 70
	}},
	{models.SignalBubbleWarning, models.ConfidenceMedium, func(r models.Regime, s models.ComponentScores, _ float64) bool {
		return r == models.RegimeComplacency && s.Sentiment > 90 && s.Gamma < 20
	}},
	{models.SignalContrarianBuy, models.ConfidenceHigh, func(_ models.Regime, s models.ComponentScores, _ float64) bool {
		return s.Sentiment < 10 && s.Volume > 80
	}},
	{models.SignalStrongBuy, models.ConfidenceHigh, func(_ models.Regime, _ models.ComponentScores, f float64) bool { return f > 85 }},
	{models.SignalBuy, models.ConfidenceMedium, func(_ models.Regime, _ models.ComponentScores, f float64) bool { return f > 70 }},
	{models.SignalStrongSell, models.ConfidenceHigh, func(_ models.Regime, _ models.ComponentScores, f float64) bool { return f < 15 }},
	{models.SignalSell, models.ConfidenceMedium, func(_ models.Regime, _ models.ComponentScores, f float64) bool { return f < 30 }},
}

// Classify labels a final score. The annotation depends only on the volatility reading.
func (c Calibration) Classify(rr RegimeReading, s models.ComponentScores, final float64) Classification {
	out := Classification{
		Signal:     models.SignalHold,
		Confidence: models.ConfidenceLow,
		Annotation: models.AnnotationStandard,
	}
	for _, r := range rules {
		if r.match(rr.Regime, s, final) {
			out.Signal, out.Confidence = r.signal, r.confidence
			break
		}
	}
	if math.Abs(rr.Reading-c.Regime.NeutralReading) > c.Regime.BoostBand {
		out.Annotation = models.AnnotationRegimeBoosted
	}
	return out
}
