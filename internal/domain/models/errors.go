package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable means a mandatory provider failed or returned insufficient data.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrComputation is an unexpected fault inside normalization or combination.
	ErrComputation = errors.New("computation error")
	// ErrCache is a persistence fault on the cache or log.
	ErrCache = errors.New("cache error")
	// ErrInvalidTicker is returned for empty or malformed tickers.
	ErrInvalidTicker = errors.New("invalid ticker")
)

// Pipeline stages reported in StageError.
const (
	StageValuation  = "valuation"
	StageRisk       = "risk"
	StageSentiment  = "sentiment"
	StageVolatility = "volatility"
	StageScoring    = "scoring"
	StageCache      = "cache"
	StageLog        = "log"
)

// StageError names the stage that failed and the error kind.
// errors.Is matches both the kind sentinel and the underlying cause.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Unavailable wraps a provider failure for stage.
func Unavailable(stage string, err error) error {
	return &StageError{Stage: stage, Kind: ErrDataUnavailable, Err: err}
}

// StageOf returns the failing stage of err, or "" if err carries none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
