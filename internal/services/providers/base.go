package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"MarketPulse/internal/service/metrics"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// HTTPBase is the shared foundation of the provider HTTP clients.
// It handles throttling, retries, the API key header and call metrics.
type HTTPBase struct {
	baseURL    string
	apiKey     string
	client     *xhttp.Client
	limiter    *ratelimit.Limiter
	maxRetries int
	retryDelay time.Duration
	log        *applogger.Logger
}

// NewHTTPBase builds the provider client from the providers config section.
func NewHTTPBase(cfg *config.Config, lim *ratelimit.Limiter, l *applogger.Logger) *HTTPBase {
	pc := cfg.Providers
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if lim == nil {
		lim = ratelimit.New(pc.RatePerSecond, pc.Burst)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &HTTPBase{
		baseURL:    strings.TrimRight(pc.BaseURL, "/"),
		apiKey:     pc.APIKey,
		client:     xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter:    lim,
		maxRetries: pc.MaxRetries,
		retryDelay: pc.RetryDelay,
		log:        l,
	}
}

// GetJSON fetches path for provider and decodes the JSON body into dest.
// Transport errors and 429/5xx responses are retried up to maxRetries times.
func (b *HTTPBase) GetJSON(ctx context.Context, provider, path string, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("%s provider: base url not configured", provider)
	}
	start := time.Now()
	defer func() {
		metrics.ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}()

	headers := map[string]string{"Accept": "application/json"}
	if b.apiKey != "" {
		headers["X-API-Key"] = b.apiKey
	}

	var err error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ProviderRetries.WithLabelValues(provider).Inc()
			select {
			case <-time.After(time.Duration(attempt) * b.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if werr := b.limiter.Wait(ctx, provider); werr != nil {
			return werr
		}
		err = b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodGet,
			URL:     b.baseURL + path,
			Headers: headers,
		}, dest)
		if err == nil {
			return nil
		}
		if !retryable(ctx, err) {
			break
		}
		b.log.Debug("provider call failed, retrying",
			applogger.String("provider", provider),
			applogger.Int("attempt", attempt+1),
			applogger.Error(err),
		)
	}
	metrics.ProviderErrors.WithLabelValues(provider).Inc()
	return fmt.Errorf("get %s: %w", path, err)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// Decode errors will not improve on retry.
	return !strings.Contains(err.Error(), "decode json")
}

// tickerPath expands the {ticker} placeholder of a configured path.
func tickerPath(tmpl, ticker string) string {
	return strings.ReplaceAll(tmpl, "{ticker}", url.PathEscape(ticker))
}
