package models

import "time"

// Regime is the market-wide volatility state that drives factor weighting.
type Regime string

const (
	RegimeFear        Regime = "FEAR"
	RegimeNormal      Regime = "NORMAL"
	RegimeComplacency Regime = "COMPLACENCY"
)

// Signal is the discrete label produced by the classifier.
type Signal string

const (
	SignalCrisisOpportunity Signal = "CRISIS_OPPORTUNITY"
	SignalFearTrap          Signal = "FEAR_TRAP"
	SignalBubbleWarning     Signal = "BUBBLE_WARNING"
	SignalContrarianBuy     Signal = "CONTRARIAN_BUY"
	SignalStrongBuy         Signal = "STRONG_BUY"
	SignalBuy               Signal = "BUY"
	SignalStrongSell        Signal = "STRONG_SELL"
	SignalSell              Signal = "SELL"
	SignalHold              Signal = "HOLD"
)

// Confidence tier attached to a signal.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Annotation marks results computed far away from the neutral volatility reading.
type Annotation string

const (
	AnnotationRegimeBoosted Annotation = "REGIME_BOOSTED"
	AnnotationStandard      Annotation = "STANDARD"
)

// ComponentScores are the four independent 0-100 inputs to the pipeline.
type ComponentScores struct {
	Sentiment float64 `json:"sentiment"`
	Gamma     float64 `json:"gamma"`
	Volume    float64 `json:"volume"`
	Valuation float64 `json:"valuation"`
}

// WeightVector holds per-factor weights for one regime.
type WeightVector struct {
	Sentiment float64 `json:"sentiment" yaml:"sentiment"`
	Gamma     float64 `json:"gamma" yaml:"gamma"`
	Volume    float64 `json:"volume" yaml:"volume"`
	Valuation float64 `json:"valuation" yaml:"valuation"`
}

// Sum returns the total weight.
func (w WeightVector) Sum() float64 {
	return w.Sentiment + w.Gamma + w.Volume + w.Valuation
}

// Map returns the weights keyed by factor name.
func (w WeightVector) Map() map[string]float64 {
	return map[string]float64{
		"sentiment": w.Sentiment,
		"gamma":     w.Gamma,
		"volume":    w.Volume,
		"valuation": w.Valuation,
	}
}

// ZScoreVector is the per-factor deviation from the calibration baseline.
type ZScoreVector struct {
	Sentiment float64 `json:"sentiment"`
	Gamma     float64 `json:"gamma"`
	Volume    float64 `json:"volume"`
	Valuation float64 `json:"valuation"`
}

// RawMetrics are the normalized provider readings for a ticker before scoring.
type RawMetrics struct {
	Sentiment         float64 `json:"sentiment"` // average, -1..1
	MentionVolume     int     `json:"mention_volume"`
	Gamma             float64 `json:"gamma"`
	PutCallRatio      float64 `json:"put_call_ratio"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	UpsidePercent     float64 `json:"upside_percent"`
	CurrentPrice      float64 `json:"current_price"`
	FairValue         float64 `json:"fair_value"`
	Sector            string  `json:"sector,omitempty"`
	Volatility        float64 `json:"volatility"`
	// VolatilityDefaulted is set when the index provider failed and the neutral reading was used.
	VolatilityDefaulted bool `json:"volatility_defaulted"`
}

// FinalResult is the output of one live computation.
type FinalResult struct {
	Ticker             string          `json:"ticker"`
	FinalScore         float64         `json:"final_score"`
	LinearScore        float64         `json:"linear_score"`
	Signal             Signal          `json:"signal"`
	Confidence         Confidence      `json:"confidence"`
	Annotation         Annotation      `json:"annotation"`
	Regime             Regime          `json:"regime"`
	Components         ComponentScores `json:"components"`
	ZScores            ZScoreVector    `json:"z_scores"`
	Raw                RawMetrics      `json:"raw"`
	Weights            WeightVector    `json:"weights"`
	CalibrationVersion string          `json:"calibration_version"`
	Timestamp          time.Time       `json:"timestamp"`
}

// CacheEntry is the single current row kept per ticker.
type CacheEntry struct {
	Ticker      string      `json:"ticker"`
	Result      FinalResult `json:"result"`
	LastUpdated time.Time   `json:"last_updated"`
}

// LogEntry is an append-only record of one live computation.
type LogEntry struct {
	ID         int64     `json:"id,omitempty"`
	Ticker     string    `json:"ticker"`
	Signal     Signal    `json:"signal"`
	FinalScore float64   `json:"final_score"`
	Timestamp  time.Time `json:"timestamp"`
}

// TickerCount is one row of a log aggregation.
type TickerCount struct {
	Ticker string `json:"ticker"`
	Count  int64  `json:"count"`
}

// CacheStats summarizes the result cache.
type CacheStats struct {
	Total       int64      `json:"total"`
	Fresh       int64      `json:"fresh"`
	OldestEntry *time.Time `json:"oldest_entry,omitempty"`
}

// Performance summarizes computation volume over a window.
type Performance struct {
	Since  time.Time     `json:"since"`
	Volume int64         `json:"volume"`
	Top    []TickerCount `json:"top"`
}
