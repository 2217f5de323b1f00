package models

// Valuation is the normalized payload of a valuation provider.
type Valuation struct {
	CurrentPrice  float64 `json:"current_price"`
	FairValue     float64 `json:"fair_value_estimate"`
	UpsidePercent float64 `json:"upside_percent"`
	Sector        string  `json:"sector"`
}

// RiskProfile is the normalized payload of an options-risk provider.
type RiskProfile struct {
	ImpliedVolatility float64 `json:"implied_volatility"`
	PutCallRatio      float64 `json:"put_call_ratio"`
	GammaSensitivity  float64 `json:"gamma_sensitivity"`
}

// SentimentReading is the normalized payload of a social-sentiment provider.
type SentimentReading struct {
	AverageSentiment float64 `json:"average_sentiment"`
	MentionVolume    int     `json:"mention_volume"`
}
