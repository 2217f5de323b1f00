package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/repository"
	"MarketPulse/internal/services/scoring"
	"MarketPulse/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeProviders return readings that map to components sentiment=70, gamma=40,
// volume=50, valuation=45 under a NORMAL reading.
type fakeProviders struct {
	valCalls int32
	valErr   error
	riskErr  error
	vixErr   error
	vix      float64
	risk     *models.RiskProfile
	block    chan struct{}
}

func (f *fakeProviders) Valuation(ctx context.Context, _ string) (models.Valuation, error) {
	atomic.AddInt32(&f.valCalls, 1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return models.Valuation{}, ctx.Err()
		}
	}
	if f.valErr != nil {
		return models.Valuation{}, f.valErr
	}
	return models.Valuation{CurrentPrice: 100, FairValue: 95, UpsidePercent: -5, Sector: "Technology"}, nil
}

func (f *fakeProviders) Risk(context.Context, string) (models.RiskProfile, error) {
	if f.riskErr != nil {
		return models.RiskProfile{}, f.riskErr
	}
	if f.risk != nil {
		return *f.risk, nil
	}
	return models.RiskProfile{ImpliedVolatility: 0.3, PutCallRatio: 1.0, GammaSensitivity: 0.4}, nil
}

func (f *fakeProviders) Sentiment(context.Context, string) (models.SentimentReading, error) {
	return models.SentimentReading{AverageSentiment: 0.4, MentionVolume: 12}, nil
}

func (f *fakeProviders) VolatilityIndex(context.Context) (float64, error) {
	if f.vixErr != nil {
		return 0, f.vixErr
	}
	return f.vix, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	seen []string
}

func (p *recordingPublisher) PublishSignal(_ context.Context, r *models.FinalResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, r.Ticker)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type failingCache struct {
	*repository.MemoryStore
}

func (failingCache) Upsert(context.Context, string, models.FinalResult) error {
	return &models.StageError{Stage: models.StageCache, Kind: models.ErrCache, Err: errors.New("disk full")}
}

type harness struct {
	engine *SignalEngine
	store  *repository.MemoryStore
	prov   *fakeProviders
	clk    *clock
}

func newHarness(t *testing.T, opts ...EngineOption) *harness {
	t.Helper()
	clk := &clock{t: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore(repository.WithClock(clk.Now))
	prov := &fakeProviders{vix: 20}
	p, err := scoring.NewPipeline(scoring.DefaultCalibration())
	require.NoError(t, err)
	opts = append([]EngineOption{WithEngineClock(clk.Now)}, opts...)
	e := NewSignalEngine(p, Providers{Valuation: prov, Risk: prov, Sentiment: prov, Volatility: prov},
		store, store, metrics.Nop{}, nil, opts...)
	return &harness{engine: e, store: store, prov: prov, clk: clk}
}

func TestCompute_EndToEnd(t *testing.T) {
	h := newHarness(t)
	res, err := h.engine.Compute(context.Background(), " aapl ")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, models.RegimeNormal, res.Regime)
	assert.InDelta(t, 65.47457, res.FinalScore, 1e-4)
	assert.Equal(t, models.SignalHold, res.Signal)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.InDelta(t, 70, res.Components.Sentiment, 1e-9)
	assert.InDelta(t, 40, res.Components.Gamma, 1e-9)
	assert.InDelta(t, 50, res.Components.Volume, 1e-9)
	assert.InDelta(t, 45, res.Components.Valuation, 1e-9)
	assert.False(t, res.Raw.VolatilityDefaulted)
}

func TestCompute_TwiceKeepsOneCacheRowTwoLogRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.Compute(ctx, "AAPL")
	require.NoError(t, err)
	h.clk.Advance(time.Minute)
	_, err = h.engine.Compute(ctx, "AAPL")
	require.NoError(t, err)

	stats, err := h.engine.CacheStats(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)

	n, err := h.store.CountSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	tr, err := h.engine.Trending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []models.TickerCount{{Ticker: "AAPL", Count: 2}}, tr)
}

func TestCompute_MandatoryProviderFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.prov.riskErr = errors.New("options chain empty")
	ctx := context.Background()

	_, err := h.engine.Compute(ctx, "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.Equal(t, models.StageRisk, models.StageOf(err))

	entry, err := h.engine.GetCached(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, entry)
	n, err := h.store.CountSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompute_VolatilityFailureUsesNeutralReading(t *testing.T) {
	h := newHarness(t)
	h.prov.vix = 45
	h.prov.vixErr = errors.New("index feed down")

	res, err := h.engine.Compute(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.RegimeNormal, res.Regime)
	assert.True(t, res.Raw.VolatilityDefaulted)
	assert.Equal(t, 20.0, res.Raw.Volatility)
	assert.Equal(t, models.AnnotationStandard, res.Annotation)
}

func TestCompute_NonFiniteVolatilityUsesNeutralReading(t *testing.T) {
	for _, vix := range []float64{math.NaN(), math.Inf(1)} {
		h := newHarness(t)
		h.prov.vix = vix

		res, err := h.engine.Compute(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.True(t, res.Raw.VolatilityDefaulted)
		assert.Equal(t, 20.0, res.Raw.Volatility)
		assert.Equal(t, models.RegimeNormal, res.Regime)

		_, err = json.Marshal(res)
		assert.NoError(t, err)
	}
}

func TestCompute_NonFiniteMandatoryReadingIsUnavailable(t *testing.T) {
	h := newHarness(t)
	h.prov.risk = &models.RiskProfile{ImpliedVolatility: 0.3, PutCallRatio: math.NaN(), GammaSensitivity: 0.4}

	_, err := h.engine.Compute(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.Equal(t, models.StageRisk, models.StageOf(err))

	n, err := h.store.CountSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompute_CacheWriteFailureStillReturnsResult(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore(repository.WithClock(clk.Now))
	prov := &fakeProviders{vix: 20}
	p, err := scoring.NewPipeline(scoring.DefaultCalibration())
	require.NoError(t, err)
	e := NewSignalEngine(p, Providers{prov, prov, prov, prov}, failingCache{store}, store, metrics.Nop{}, nil,
		WithEngineClock(clk.Now))

	res, err := e.Compute(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, res.Signal)

	n, err := store.CountSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCompute_InvalidTicker(t *testing.T) {
	h := newHarness(t)
	for _, tk := range []string{"", "   ", "AA PL", "TOOLONGTICKER1"} {
		_, err := h.engine.Compute(context.Background(), tk)
		assert.ErrorIs(t, err, models.ErrInvalidTicker, tk)
	}
	assert.Zero(t, atomic.LoadInt32(&h.prov.valCalls))
}

func TestAnalyze_CacheGate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.engine.Analyze(ctx, "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, models.SourceLive, a.Source)
	assert.Nil(t, a.CachedAt)

	h.clk.Advance(59 * time.Minute)
	a, err = h.engine.Analyze(ctx, "aapl", false)
	require.NoError(t, err)
	assert.Equal(t, models.SourceCache, a.Source)
	require.NotNil(t, a.CachedAt)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.prov.valCalls))

	a, err = h.engine.Analyze(ctx, "AAPL", true)
	require.NoError(t, err)
	assert.Equal(t, models.SourceLive, a.Source)

	h.clk.Advance(61 * time.Minute)
	a, err = h.engine.Analyze(ctx, "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, models.SourceLive, a.Source)
	assert.Equal(t, int32(3), atomic.LoadInt32(&h.prov.valCalls))
}

func TestAnalyze_CoalescesConcurrentMisses(t *testing.T) {
	h := newHarness(t)
	h.prov.block = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]models.Analysis, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.engine.Analyze(context.Background(), "NVDA", false)
		}(i)
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&h.prov.valCalls) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(h.prov.block)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Result.FinalScore, results[i].Result.FinalScore)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.prov.valCalls))
	n, err := h.store.CountSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAnalyze_WithoutCoalescingEachMissComputes(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.CoalesceMisses = false
	h := newHarness(t, WithEngineConfig(cfg))
	ctx := context.Background()

	_, err := h.engine.Analyze(ctx, "AAPL", true)
	require.NoError(t, err)
	_, err = h.engine.Analyze(ctx, "AAPL", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&h.prov.valCalls))
}

func TestInvalidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ok, err := h.engine.Invalidate(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = h.engine.Invalidate(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.engine.Compute(ctx, "AAPL")
	require.NoError(t, err)
	fresh, err := h.engine.IsFresh(ctx, "AAPL", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)

	ok, err = h.engine.Invalidate(ctx, "aapl")
	require.NoError(t, err)
	assert.True(t, ok)
	fresh, err = h.engine.IsFresh(ctx, "AAPL", time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.Compute(ctx, "AAPL")
	require.NoError(t, err)

	out, err := h.engine.Batch(ctx, []string{"AAPL", "MSFT", "BAD TICKER"})
	require.NoError(t, err)
	require.NotNil(t, out["AAPL"].Score)
	assert.Equal(t, models.SourceCache, out["AAPL"].Source)
	assert.Equal(t, "HOLD", out["AAPL"].Signal)
	assert.Equal(t, models.SourceNeedsRefresh, out["MSFT"].Source)
	assert.Equal(t, models.SourceInvalid, out["BAD TICKER"].Source)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.prov.valCalls))

	_, err = h.engine.Batch(ctx, make([]string, 11))
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestPerformance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, tk := range []string{"AAPL", "MSFT", "AAPL"} {
		_, err := h.engine.Compute(ctx, tk)
		require.NoError(t, err)
	}
	since := h.clk.Now().Add(-time.Hour)
	h.clk.Advance(time.Minute)

	perf, err := h.engine.Performance(ctx, since, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), perf.Volume)
	assert.Equal(t, []models.TickerCount{{Ticker: "AAPL", Count: 2}}, perf.Top)
}

func TestCompute_PublishesResult(t *testing.T) {
	pub := &recordingPublisher{}
	h := newHarness(t, WithPublisher(pub))
	_, err := h.engine.Compute(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, pub.seen)
}
