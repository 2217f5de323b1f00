package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/internal/services/scoring"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrBatchTooLarge is returned when a batch names more tickers than the engine allows.
var ErrBatchTooLarge = errors.New("too many tickers in batch")

// Providers groups the upstream data sources of one computation.
type Providers struct {
	Valuation  domsvc.ValuationProvider
	Risk       domsvc.RiskProvider
	Sentiment  domsvc.SentimentProvider
	Volatility domsvc.VolatilityIndexProvider
}

// EngineConfig tunes cache gating and computation limits.
type EngineConfig struct {
	MaxAge         time.Duration
	CoalesceMisses bool
	ComputeTimeout time.Duration
	BatchLimit     int
}

// DefaultEngineConfig mirrors the engine section defaults of the app config.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxAge:         60 * time.Minute,
		CoalesceMisses: true,
		ComputeTimeout: 20 * time.Second,
		BatchLimit:     10,
	}
}

// SignalEngine fetches provider data, scores it, and keeps the result cache and
// computation log up to date.
type SignalEngine struct {
	pipeline  *scoring.Pipeline
	providers Providers
	cache     domrepo.ResultCache
	history   domrepo.ComputationLog
	publisher domrepo.SignalPublisher
	metrics   domrepo.Metrics
	log       *applogger.Logger
	cfg       EngineConfig
	now       func() time.Time
	group     singleflight.Group
}

type EngineOption func(*SignalEngine)

func WithEngineConfig(cfg EngineConfig) EngineOption {
	return func(e *SignalEngine) { e.cfg = cfg }
}

// WithPublisher fans every live result out to pub.
func WithPublisher(pub domrepo.SignalPublisher) EngineOption {
	return func(e *SignalEngine) { e.publisher = pub }
}

// WithEngineClock replaces time.Now; it should match the store's clock.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *SignalEngine) { e.now = now }
}

func NewSignalEngine(p *scoring.Pipeline, providers Providers, cache domrepo.ResultCache, history domrepo.ComputationLog, metrics domrepo.Metrics, l *applogger.Logger, opts ...EngineOption) *SignalEngine {
	e := &SignalEngine{
		pipeline:  p,
		providers: providers,
		cache:     cache,
		history:   history,
		metrics:   metrics,
		log:       l,
		cfg:       DefaultEngineConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = applogger.Nop()
	}
	return e
}

func normalize(ticker string) (string, error) {
	t := util.NormalizeTicker(ticker)
	if !util.ValidTicker(t) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidTicker, ticker)
	}
	return t, nil
}

// Compute runs one live computation for ticker. A mandatory provider failure aborts
// without touching the cache or the log. Persistence failures are logged and the
// result is still returned.
func (e *SignalEngine) Compute(ctx context.Context, ticker string) (models.FinalResult, error) {
	t, err := normalize(ticker)
	if err != nil {
		return models.FinalResult{}, err
	}
	return e.compute(ctx, t)
}

func (e *SignalEngine) compute(ctx context.Context, ticker string) (models.FinalResult, error) {
	start := time.Now()
	if e.cfg.ComputeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ComputeTimeout)
		defer cancel()
	}

	raw, err := e.gather(ctx, ticker)
	if err != nil {
		e.metrics.RecordError("data_unavailable")
		e.log.Error("provider fetch failed",
			applogger.String("ticker", ticker),
			applogger.String("stage", models.StageOf(err)),
			applogger.Error(err),
		)
		return models.FinalResult{}, err
	}

	res, err := e.pipeline.Score(ticker, raw, e.now())
	if err != nil {
		e.metrics.RecordError("computation")
		e.log.Error("scoring failed", applogger.String("ticker", ticker), applogger.Error(err))
		return models.FinalResult{}, err
	}

	e.persist(ctx, &res)

	e.metrics.RecordComputation(string(res.Regime), string(res.Signal))
	e.metrics.RecordFinalScore(res.Ticker, res.FinalScore)
	e.metrics.RecordLatency("compute", time.Since(start).Seconds())
	e.log.Info("signal computed",
		applogger.String("ticker", res.Ticker),
		applogger.Float64("final_score", res.FinalScore),
		applogger.String("signal", string(res.Signal)),
		applogger.String("confidence", string(res.Confidence)),
		applogger.String("regime", string(res.Regime)),
		applogger.Bool("volatility_defaulted", raw.VolatilityDefaulted),
	)

	if e.publisher != nil {
		if err := e.publisher.PublishSignal(ctx, &res); err != nil {
			e.metrics.RecordError("publish")
			e.log.Warn("signal publish failed", applogger.String("ticker", res.Ticker), applogger.Error(err))
		}
	}
	return res, nil
}

var errNonFinite = errors.New("provider returned a non-finite reading")

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// gather fetches the three mandatory providers and the volatility index concurrently.
func (e *SignalEngine) gather(ctx context.Context, ticker string) (models.RawMetrics, error) {
	var (
		val  models.Valuation
		risk models.RiskProfile
		sent models.SentimentReading
		vix  float64
		vErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := e.providers.Valuation.Valuation(gctx, ticker)
		if err == nil && !finite(v.CurrentPrice, v.FairValue, v.UpsidePercent) {
			err = errNonFinite
		}
		if err != nil {
			return models.Unavailable(models.StageValuation, err)
		}
		val = v
		return nil
	})
	g.Go(func() error {
		r, err := e.providers.Risk.Risk(gctx, ticker)
		if err == nil && !finite(r.PutCallRatio, r.GammaSensitivity, r.ImpliedVolatility) {
			err = errNonFinite
		}
		if err != nil {
			return models.Unavailable(models.StageRisk, err)
		}
		risk = r
		return nil
	})
	g.Go(func() error {
		s, err := e.providers.Sentiment.Sentiment(gctx, ticker)
		if err == nil && !finite(s.AverageSentiment) {
			err = errNonFinite
		}
		if err != nil {
			return models.Unavailable(models.StageSentiment, err)
		}
		sent = s
		return nil
	})
	g.Go(func() error {
		vix, vErr = e.providers.Volatility.VolatilityIndex(gctx)
		if vErr == nil && !finite(vix) {
			vErr = errNonFinite
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.RawMetrics{}, err
	}

	raw := models.RawMetrics{
		Sentiment:         sent.AverageSentiment,
		MentionVolume:     sent.MentionVolume,
		Gamma:             risk.GammaSensitivity,
		PutCallRatio:      risk.PutCallRatio,
		ImpliedVolatility: risk.ImpliedVolatility,
		UpsidePercent:     val.UpsidePercent,
		CurrentPrice:      val.CurrentPrice,
		FairValue:         val.FairValue,
		Sector:            val.Sector,
		Volatility:        vix,
	}
	if vErr != nil {
		neutral := e.pipeline.Calibration().NeutralRegime()
		raw.Volatility = neutral.Reading
		raw.VolatilityDefaulted = true
		e.metrics.RecordError("volatility_default")
		e.log.Warn("volatility index unavailable, using neutral reading",
			applogger.Float64("reading", neutral.Reading),
			applogger.Error(vErr),
		)
	}
	return raw, nil
}

func (e *SignalEngine) persist(ctx context.Context, res *models.FinalResult) {
	if err := e.cache.Upsert(ctx, res.Ticker, *res); err != nil {
		e.metrics.RecordError("cache_write")
		e.log.Warn("cache upsert failed", applogger.String("ticker", res.Ticker), applogger.Error(err))
	}
	entry := models.LogEntry{
		Ticker:     res.Ticker,
		Signal:     res.Signal,
		FinalScore: res.FinalScore,
		Timestamp:  res.Timestamp,
	}
	if err := e.history.Append(ctx, entry); err != nil {
		e.metrics.RecordError("log_write")
		e.log.Warn("computation log append failed", applogger.String("ticker", res.Ticker), applogger.Error(err))
	}
}

// Analyze serves a fresh cached result when one exists and computes live otherwise.
// forceRefresh skips the cache. Concurrent misses for one ticker share a computation
// when coalescing is enabled.
func (e *SignalEngine) Analyze(ctx context.Context, ticker string, forceRefresh bool) (models.Analysis, error) {
	t, err := normalize(ticker)
	if err != nil {
		return models.Analysis{}, err
	}

	if !forceRefresh {
		entry, err := e.cache.Get(ctx, t)
		switch {
		case err != nil:
			e.metrics.RecordError("cache_read")
			e.log.Warn("cache read failed, computing live", applogger.String("ticker", t), applogger.Error(err))
		case entry != nil && e.now().Sub(entry.LastUpdated) < e.cfg.MaxAge:
			e.metrics.RecordCacheLookup(true)
			e.log.Debug("cache hit", applogger.String("ticker", t))
			at := entry.LastUpdated
			return models.Analysis{Ticker: t, Source: models.SourceCache, CachedAt: &at, Result: entry.Result}, nil
		}
		e.metrics.RecordCacheLookup(false)
	}

	res, err := e.computeShared(ctx, t)
	if err != nil {
		return models.Analysis{}, err
	}
	return models.Analysis{Ticker: t, Source: models.SourceLive, Result: res}, nil
}

func (e *SignalEngine) computeShared(ctx context.Context, ticker string) (models.FinalResult, error) {
	if !e.cfg.CoalesceMisses {
		return e.compute(ctx, ticker)
	}
	// The shared computation outlives any single caller; each caller may still give up.
	ch := e.group.DoChan(ticker, func() (interface{}, error) {
		return e.compute(context.WithoutCancel(ctx), ticker)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return models.FinalResult{}, r.Err
		}
		return r.Val.(models.FinalResult), nil
	case <-ctx.Done():
		return models.FinalResult{}, ctx.Err()
	}
}

// IsFresh reports whether ticker has a cached result younger than maxAge.
func (e *SignalEngine) IsFresh(ctx context.Context, ticker string, maxAge time.Duration) (bool, error) {
	t, err := normalize(ticker)
	if err != nil {
		return false, err
	}
	return e.cache.IsFresh(ctx, t, maxAge)
}

// GetCached returns the cached entry for ticker, or nil when there is none.
func (e *SignalEngine) GetCached(ctx context.Context, ticker string) (*models.CacheEntry, error) {
	t, err := normalize(ticker)
	if err != nil {
		return nil, err
	}
	return e.cache.Get(ctx, t)
}

// Invalidate drops the cached entry and reports whether one existed.
func (e *SignalEngine) Invalidate(ctx context.Context, ticker string) (bool, error) {
	t, err := normalize(ticker)
	if err != nil {
		return false, err
	}
	ok, err := e.cache.Invalidate(ctx, t)
	if err != nil {
		return false, err
	}
	if ok {
		e.log.Info("cache entry invalidated", applogger.String("ticker", t))
	}
	return ok, nil
}

// Trending returns the most computed tickers over the whole log.
func (e *SignalEngine) Trending(ctx context.Context, limit int) ([]models.TickerCount, error) {
	if limit <= 0 {
		limit = 10
	}
	return e.history.Trending(ctx, limit)
}

// Performance reports computation volume since the given time and the top tickers in that window.
func (e *SignalEngine) Performance(ctx context.Context, since time.Time, top int) (models.Performance, error) {
	if top <= 0 {
		top = 5
	}
	n, err := e.history.CountSince(ctx, since)
	if err != nil {
		return models.Performance{}, err
	}
	tc, err := e.history.TrendingSince(ctx, since, top)
	if err != nil {
		return models.Performance{}, err
	}
	return models.Performance{Since: since.UTC(), Volume: n, Top: tc}, nil
}

func (e *SignalEngine) CacheStats(ctx context.Context, freshWithin time.Duration) (models.CacheStats, error) {
	if freshWithin <= 0 {
		freshWithin = e.cfg.MaxAge
	}
	return e.cache.Stats(ctx, freshWithin)
}

// Batch looks up cached results only; it never calls providers. Tickers without a
// fresh entry are reported as needing a refresh.
func (e *SignalEngine) Batch(ctx context.Context, tickers []string) (map[string]models.BatchItem, error) {
	if e.cfg.BatchLimit > 0 && len(tickers) > e.cfg.BatchLimit {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(tickers), e.cfg.BatchLimit)
	}
	out := make(map[string]models.BatchItem, len(tickers))
	for _, raw := range tickers {
		t, err := normalize(raw)
		if err != nil {
			out[raw] = models.BatchItem{Source: models.SourceInvalid, Error: err.Error()}
			continue
		}
		entry, err := e.cache.Get(ctx, t)
		if err != nil {
			return nil, err
		}
		if entry == nil || e.now().Sub(entry.LastUpdated) >= e.cfg.MaxAge {
			out[t] = models.BatchItem{Source: models.SourceNeedsRefresh}
			continue
		}
		score := entry.Result.FinalScore
		out[t] = models.BatchItem{Score: &score, Signal: string(entry.Result.Signal), Source: models.SourceCache}
	}
	return out, nil
}

// CalibrationVersion names the calibration table results are scored with.
func (e *SignalEngine) CalibrationVersion() string {
	return e.pipeline.Calibration().Version
}
