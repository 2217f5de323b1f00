package scoring

import (
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
)

// Pipeline runs regime detection, weighting, normalization, combination and
// classification for one calibration table.
type Pipeline struct {
	cal Calibration
}

// NewPipeline validates cal and returns a pipeline bound to it.
func NewPipeline(cal Calibration) (*Pipeline, error) {
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("calibration %q: %w", cal.Version, err)
	}
	return &Pipeline{cal: cal}, nil
}

// Calibration returns the table the pipeline was built with.
func (p *Pipeline) Calibration() Calibration { return p.cal }

// Score computes a FinalResult from already collected raw metrics.
func (p *Pipeline) Score(ticker string, raw models.RawMetrics, at time.Time) (models.FinalResult, error) {
	rr := p.cal.DetectRegime(raw.Volatility)
	rr.Defaulted = raw.VolatilityDefaulted
	return p.ScoreComponents(ticker, rr, Components(raw), raw, at)
}

// ScoreComponents computes a FinalResult from component scores and a detected regime.
func (p *Pipeline) ScoreComponents(ticker string, rr RegimeReading, s models.ComponentScores, raw models.RawMetrics, at time.Time) (models.FinalResult, error) {
	w := p.cal.WeightsFor(rr.Regime)
	z := p.cal.Normalize(s)
	comb, err := p.cal.Combine(z, w, s)
	if err != nil {
		return models.FinalResult{}, err
	}
	cls := p.cal.Classify(rr, s, comb.Final)

	return models.FinalResult{
		Ticker:             strings.ToUpper(ticker),
		FinalScore:         comb.Final,
		LinearScore:        comb.Linear,
		Signal:             cls.Signal,
		Confidence:         cls.Confidence,
		Annotation:         cls.Annotation,
		Regime:             rr.Regime,
		Components:         s,
		ZScores:            z,
		Raw:                raw,
		Weights:            w,
		CalibrationVersion: p.cal.Version,
		Timestamp:          at.UTC(),
	}, nil
}
