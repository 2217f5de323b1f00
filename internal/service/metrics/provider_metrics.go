package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketpulse",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Latency of upstream provider calls, retries included",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Failed provider calls after retries",
		},
		[]string{"provider"},
	)

	ProviderRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Provider call attempts beyond the first",
		},
		[]string{"provider"},
	)

	// VolatilityCacheHits counts index readings served from the short-lived reading cache.
	VolatilityCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "provider",
			Name:      "volatility_cache_hits_total",
			Help:      "Volatility index readings served from cache",
		},
	)
)

// Register adds the provider collectors to reg once per process.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(ProviderLatency, ProviderErrors, ProviderRetries, VolatilityCacheHits)
	})
}
