package scoring

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCalibration_WeightsSumToOne(t *testing.T) {
	cal := DefaultCalibration()
	require.NoError(t, cal.Validate())
	for _, r := range []models.Regime{models.RegimeFear, models.RegimeNormal, models.RegimeComplacency} {
		assert.InDelta(t, 1.0, cal.WeightsFor(r).Sum(), 1e-9, "regime %s", r)
	}
}

func TestDetectRegime_Boundaries(t *testing.T) {
	cal := DefaultCalibration()
	cases := []struct {
		reading float64
		want    models.Regime
	}{
		{30.0, models.RegimeNormal},
		{30.01, models.RegimeFear},
		{45, models.RegimeFear},
		{15.0, models.RegimeNormal},
		{14.99, models.RegimeComplacency},
		{20, models.RegimeNormal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cal.DetectRegime(tc.reading).Regime, "reading %v", tc.reading)
	}
}

func TestNeutralRegime(t *testing.T) {
	rr := DefaultCalibration().NeutralRegime()
	assert.Equal(t, models.RegimeNormal, rr.Regime)
	assert.Equal(t, 20.0, rr.Reading)
	assert.True(t, rr.Defaulted)
}

func TestCombine_StaysInsideOpenInterval(t *testing.T) {
	cal := DefaultCalibration()
	extremes := []float64{0, 100}
	for _, r := range []models.Regime{models.RegimeFear, models.RegimeNormal, models.RegimeComplacency} {
		w := cal.WeightsFor(r)
		for _, a := range extremes {
			for _, b := range extremes {
				for _, c := range extremes {
					for _, d := range extremes {
						s := models.ComponentScores{Sentiment: a, Gamma: b, Volume: c, Valuation: d}
						comb, err := cal.Combine(cal.Normalize(s), w, s)
						require.NoError(t, err)
						assert.Greater(t, comb.Final, 0.0)
						assert.Less(t, comb.Final, 100.0)
					}
				}
			}
		}
	}
}

func TestCombine_MonotonicInEachFactor(t *testing.T) {
	cal := DefaultCalibration()
	w := cal.WeightsFor(models.RegimeNormal)
	final := func(s models.ComponentScores) float64 {
		comb, err := cal.Combine(cal.Normalize(s), w, s)
		require.NoError(t, err)
		return comb.Final
	}
	base := models.ComponentScores{Sentiment: 50, Gamma: 50, Volume: 50, Valuation: 50}
	bumps := []func(s *models.ComponentScores){
		func(s *models.ComponentScores) { s.Sentiment += 10 },
		func(s *models.ComponentScores) { s.Gamma += 10 },
		func(s *models.ComponentScores) { s.Volume += 10 },
		func(s *models.ComponentScores) { s.Valuation += 10 },
	}
	for i, bump := range bumps {
		next := base
		bump(&next)
		assert.Greater(t, final(next), final(base), "factor %d", i)
	}
}

func TestCombine_RejectsNonFinite(t *testing.T) {
	cal := DefaultCalibration()
	s := models.ComponentScores{Sentiment: math.NaN()}
	_, err := cal.Combine(cal.Normalize(s), cal.WeightsFor(models.RegimeNormal), s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrComputation))
	assert.Equal(t, models.StageScoring, models.StageOf(err))
}

func TestLinearScoreDoesNotAffectLabel(t *testing.T) {
	cal := DefaultCalibration()
	rr := cal.DetectRegime(20)
	s := models.ComponentScores{Sentiment: 70, Gamma: 40, Volume: 50, Valuation: 45}
	comb, err := cal.Combine(cal.Normalize(s), cal.WeightsFor(rr.Regime), s)
	require.NoError(t, err)
	assert.InDelta(t, 70*0.2+40*0.3+50*0.3+45*0.2, comb.Linear, 1e-9)
	assert.Equal(t, models.SignalHold, cal.Classify(rr, s, comb.Final).Signal)
}

func TestClassify_RulePriority(t *testing.T) {
	cal := DefaultCalibration()
	fear := cal.DetectRegime(35)
	normal := cal.DetectRegime(20)
	complacent := cal.DetectRegime(12)

	cases := []struct {
		name  string
		rr    RegimeReading
		s     models.ComponentScores
		final float64
		want  models.Signal
		conf  models.Confidence
	}{
		{"crisis beats strong buy", fear, models.ComponentScores{Gamma: 90, Sentiment: 80}, 90, models.SignalCrisisOpportunity, models.ConfidenceHigh},
		{"fear trap", fear, models.ComponentScores{Gamma: 50, Sentiment: 75}, 50, models.SignalFearTrap, models.ConfidenceHigh},
		{"bubble warning", complacent, models.ComponentScores{Sentiment: 95, Gamma: 10}, 90, models.SignalBubbleWarning, models.ConfidenceMedium},
		{"contrarian buy", normal, models.ComponentScores{Sentiment: 5, Volume: 85}, 10, models.SignalContrarianBuy, models.ConfidenceHigh},
		{"strong buy", normal, models.ComponentScores{Sentiment: 50}, 86, models.SignalStrongBuy, models.ConfidenceHigh},
		{"buy", normal, models.ComponentScores{Sentiment: 50}, 71, models.SignalBuy, models.ConfidenceMedium},
		{"strong sell", normal, models.ComponentScores{Sentiment: 50}, 14, models.SignalStrongSell, models.ConfidenceHigh},
		{"sell", normal, models.ComponentScores{Sentiment: 50}, 29, models.SignalSell, models.ConfidenceMedium},
		{"hold at band edge", normal, models.ComponentScores{Sentiment: 50}, 70, models.SignalHold, models.ConfidenceLow},
		{"fear without trigger falls through", fear, models.ComponentScores{Gamma: 80, Sentiment: 70}, 50, models.SignalHold, models.ConfidenceLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cal.Classify(tc.rr, tc.s, tc.final)
			assert.Equal(t, tc.want, got.Signal)
			assert.Equal(t, tc.conf, got.Confidence)
		})
	}
}

func TestClassify_Annotation(t *testing.T) {
	cal := DefaultCalibration()
	s := models.ComponentScores{Sentiment: 50}
	assert.Equal(t, models.AnnotationStandard, cal.Classify(cal.DetectRegime(30), s, 50).Annotation)
	assert.Equal(t, models.AnnotationStandard, cal.Classify(cal.DetectRegime(10), s, 50).Annotation)
	assert.Equal(t, models.AnnotationRegimeBoosted, cal.Classify(cal.DetectRegime(30.5), s, 50).Annotation)
	assert.Equal(t, models.AnnotationRegimeBoosted, cal.Classify(cal.DetectRegime(9), s, 50).Annotation)
}

func TestComponents_Clamp(t *testing.T) {
	s := Components(models.RawMetrics{Sentiment: 0.4, Gamma: 2.5, PutCallRatio: 0.5, UpsidePercent: -80})
	assert.InDelta(t, 70, s.Sentiment, 1e-9)
	assert.Equal(t, 100.0, s.Gamma)
	assert.InDelta(t, 75, s.Volume, 1e-9)
	assert.Equal(t, 0.0, s.Valuation)
}

func TestPipeline_EndToEnd(t *testing.T) {
	p, err := NewPipeline(DefaultCalibration())
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rr := p.Calibration().DetectRegime(20)
	s := models.ComponentScores{Sentiment: 70, Gamma: 40, Volume: 50, Valuation: 45}
	res, err := p.ScoreComponents("aapl", rr, s, models.RawMetrics{Volatility: 20}, at)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, models.RegimeNormal, res.Regime)
	assert.InDelta(t, 0.8, res.ZScores.Sentiment, 1e-12)
	assert.InDelta(t, 0, res.ZScores.Gamma, 1e-12)
	assert.InDelta(t, 0, res.ZScores.Volume, 1e-12)
	assert.InDelta(t, 0, res.ZScores.Valuation, 1e-12)
	assert.InDelta(t, 100/(1+math.Exp(-0.64)), res.FinalScore, 1e-6)
	assert.InDelta(t, 65.4746, res.FinalScore, 1e-3)
	assert.Equal(t, models.SignalHold, res.Signal)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.Equal(t, models.AnnotationStandard, res.Annotation)
	assert.Equal(t, "v1", res.CalibrationVersion)
	assert.Equal(t, at, res.Timestamp)
}

func TestPipeline_ScoreFromRaw(t *testing.T) {
	p, err := NewPipeline(DefaultCalibration())
	require.NoError(t, err)
	// sentiment 0.4 -> 70, gamma 0.4 -> 40, put/call 1 -> 50, upside -5 -> 45
	raw := models.RawMetrics{Sentiment: 0.4, Gamma: 0.4, PutCallRatio: 1, UpsidePercent: -5, Volatility: 20}
	res, err := p.Score("MSFT", raw, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 100/(1+math.Exp(-0.64)), res.FinalScore, 1e-6)
	assert.Equal(t, models.SignalHold, res.Signal)
}

func TestNewPipeline_RejectsBadCalibration(t *testing.T) {
	cal := DefaultCalibration()
	cal.Weights = map[models.Regime]models.WeightVector{
		models.RegimeFear:        {Sentiment: 0.5, Gamma: 0.5, Volume: 0.5},
		models.RegimeNormal:      cal.Weights[models.RegimeNormal],
		models.RegimeComplacency: cal.Weights[models.RegimeComplacency],
	}
	_, err := NewPipeline(cal)
	assert.Error(t, err)

	cal = DefaultCalibration()
	cal.Stds.Gamma = 0
	_, err = NewPipeline(cal)
	assert.Error(t, err)
}

func TestLoadCalibration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.yaml")
	content := `version: "v2"
regime:
  fear_above: 28
means:
  sentiment: 55
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cal, err := LoadCalibration(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", cal.Version)
	assert.Equal(t, 28.0, cal.Regime.FearAbove)
	assert.Equal(t, 15.0, cal.Regime.ComplacencyBelow)
	assert.Equal(t, 55.0, cal.Means.Sentiment)
	assert.Equal(t, 40.0, cal.Means.Gamma)
	assert.Equal(t, models.RegimeFear, cal.DetectRegime(29).Regime)
}

func TestLoadCalibration_InvalidWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := `weights:
  FEAR: {sentiment: 0.9, gamma: 0.9, volume: 0, valuation: 0}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	_, err := LoadCalibration(path)
	assert.Error(t, err)
}
