package scoring

import (
	"fmt"
	"math"
	"os"

	"MarketPulse/internal/domain/models"

	"gopkg.in/yaml.v3"
)

// weightSumTolerance bounds the drift allowed when a weight row is summed.
const weightSumTolerance = 1e-9

// Baseline holds one static prior per factor.
type Baseline struct {
	Sentiment float64 `yaml:"sentiment"`
	Gamma     float64 `yaml:"gamma"`
	Volume    float64 `yaml:"volume"`
	Valuation float64 `yaml:"valuation"`
}

// RegimeThresholds maps a volatility reading to a regime.
type RegimeThresholds struct {
	FearAbove        float64 `yaml:"fear_above"`
	ComplacencyBelow float64 `yaml:"complacency_below"`
	// NeutralReading substitutes a failed volatility provider and centres the boost band.
	NeutralReading float64 `yaml:"neutral_reading"`
	BoostBand      float64 `yaml:"boost_band"`
}

// Calibration is the versioned constant table the pipeline runs on.
type Calibration struct {
	Version     string                                `yaml:"version"`
	Regime      RegimeThresholds                      `yaml:"regime"`
	Weights     map[models.Regime]models.WeightVector `yaml:"weights"`
	Means       Baseline                              `yaml:"means"`
	Stds        Baseline                              `yaml:"stds"`
	Sensitivity float64                               `yaml:"sensitivity"`
}

// DefaultCalibration returns the production constants.
func DefaultCalibration() Calibration {
	return Calibration{
		Version: "v1",
		Regime: RegimeThresholds{
			FearAbove:        30,
			ComplacencyBelow: 15,
			NeutralReading:   20,
			BoostBand:        10,
		},
		Weights: map[models.Regime]models.WeightVector{
			models.RegimeFear:        {Sentiment: 0.10, Gamma: 0.50, Volume: 0.30, Valuation: 0.10},
			models.RegimeComplacency: {Sentiment: 0.40, Gamma: 0.20, Volume: 0.20, Valuation: 0.20},
			models.RegimeNormal:      {Sentiment: 0.20, Gamma: 0.30, Volume: 0.30, Valuation: 0.20},
		},
		Means:       Baseline{Sentiment: 50, Gamma: 40, Volume: 50, Valuation: 45},
		Stds:        Baseline{Sentiment: 25, Gamma: 30, Volume: 30, Valuation: 25},
		Sensitivity: 4,
	}
}

// LoadCalibration reads a calibration table from a YAML file.
// Fields missing from the file keep their default value.
func LoadCalibration(path string) (Calibration, error) {
	cal := DefaultCalibration()
	b, err := os.ReadFile(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("read calibration: %w", err)
	}
	if err := yaml.Unmarshal(b, &cal); err != nil {
		return Calibration{}, fmt.Errorf("parse calibration: %w", err)
	}
	if err := cal.Validate(); err != nil {
		return Calibration{}, fmt.Errorf("validate calibration %s: %w", path, err)
	}
	return cal, nil
}

// Validate checks the invariants the pipeline relies on.
func (c Calibration) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Regime.ComplacencyBelow > c.Regime.FearAbove {
		return fmt.Errorf("complacency_below (%v) must not exceed fear_above (%v)", c.Regime.ComplacencyBelow, c.Regime.FearAbove)
	}
	for _, r := range []models.Regime{models.RegimeFear, models.RegimeNormal, models.RegimeComplacency} {
		w, ok := c.Weights[r]
		if !ok {
			return fmt.Errorf("weights for regime %s missing", r)
		}
		if w.Sentiment < 0 || w.Gamma < 0 || w.Volume < 0 || w.Valuation < 0 {
			return fmt.Errorf("weights for regime %s must be non-negative", r)
		}
		if math.Abs(w.Sum()-1) > weightSumTolerance {
			return fmt.Errorf("weights for regime %s sum to %v, want 1", r, w.Sum())
		}
	}
	if c.Stds.Sentiment <= 0 || c.Stds.Gamma <= 0 || c.Stds.Volume <= 0 || c.Stds.Valuation <= 0 {
		return fmt.Errorf("stds must be positive")
	}
	if c.Sensitivity <= 0 {
		return fmt.Errorf("sensitivity must be positive")
	}
	return nil
}
