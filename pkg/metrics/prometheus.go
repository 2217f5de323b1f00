package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the engine's Metrics interface using Prometheus.
type Recorder struct {
	computations *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	finalScore   *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		computations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_computations_total",
				Help: "Live signal computations by regime and signal",
			},
			[]string{"regime", "signal"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_cache_lookups_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"hit"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		finalScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_final_score",
				Help: "Last computed final score for a ticker",
			},
			[]string{"ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordComputation counts one live computation.
func (r *Recorder) RecordComputation(regime, signal string) {
	r.computations.WithLabelValues(regime, signal).Inc()
}

func (r *Recorder) RecordCacheLookup(hit bool) {
	r.cacheLookups.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordFinalScore records the last score for a ticker.
func (r *Recorder) RecordFinalScore(ticker string, score float64) {
	r.finalScore.WithLabelValues(ticker).Set(score)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordComputation(string, string) {}
func (Nop) RecordCacheLookup(bool) {}
func (Nop) RecordError(string) {}
func (Nop) RecordFinalScore(string, float64) {}
func (Nop) RecordLatency(string, float64) {}
