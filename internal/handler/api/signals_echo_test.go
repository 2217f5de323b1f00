package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	analyzeErr  error
	cached      *models.CacheEntry
	invalidated bool
	lastForce   bool
	lastSince   time.Time
	lastTop     int
	lastLimit   int
	lastFresh   time.Duration
	lastBatch   []string
}

func (f *fakeService) Analyze(_ context.Context, ticker string, force bool) (models.Analysis, error) {
	f.lastForce = force
	if f.analyzeErr != nil {
		return models.Analysis{}, f.analyzeErr
	}
	return models.Analysis{Ticker: ticker, Source: models.SourceLive, Result: models.FinalResult{Ticker: ticker, Signal: models.SignalHold, FinalScore: 65.47}}, nil
}

func (f *fakeService) GetCached(context.Context, string) (*models.CacheEntry, error) {
	return f.cached, nil
}

func (f *fakeService) Invalidate(context.Context, string) (bool, error) {
	return f.invalidated, nil
}

func (f *fakeService) CacheStats(_ context.Context, d time.Duration) (models.CacheStats, error) {
	f.lastFresh = d
	return models.CacheStats{Total: 3, Fresh: 2}, nil
}

func (f *fakeService) Trending(_ context.Context, limit int) ([]models.TickerCount, error) {
	f.lastLimit = limit
	return []models.TickerCount{{Ticker: "AAPL", Count: 4}}, nil
}

func (f *fakeService) Performance(_ context.Context, since time.Time, top int) (models.Performance, error) {
	f.lastSince, f.lastTop = since, top
	return models.Performance{Since: since, Volume: 9}, nil
}

func (f *fakeService) Batch(_ context.Context, tickers []string) (map[string]models.BatchItem, error) {
	f.lastBatch = tickers
	if len(tickers) > 10 {
		return nil, fmt.Errorf("%w: %d > 10", usecase.ErrBatchTooLarge, len(tickers))
	}
	return map[string]models.BatchItem{}, nil
}

func (f *fakeService) CalibrationVersion() string { return "v1" }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(svc *fakeService) (*echo.Echo, *SignalsEchoHandler) {
	e := echo.New()
	h := NewSignalsEchoHandler(xlogger.Nop(), svc)
	h.now = func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) }
	h.RegisterRoutes(e)
	return e, h
}

func call(t *testing.T, e *echo.Echo, method, path string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	assert.Equal(t, rec.Code, env.Status)
	return rec.Code, env
}

func TestAnalyze_OK(t *testing.T) {
	svc := &fakeService{}
	e, _ := newTestServer(svc)

	code, env := call(t, e, http.MethodGet, "/api/v1/signals/AAPL?force_refresh=true")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, svc.lastForce)
	var a models.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, models.SignalHold, a.Result.Signal)
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid ticker", fmt.Errorf("%w: %q", models.ErrInvalidTicker, "A B"), http.StatusBadRequest},
		{"provider down", models.Unavailable(models.StageValuation, errors.New("timeout")), http.StatusBadGateway},
		{"computation", &models.StageError{Stage: models.StageScoring, Kind: models.ErrComputation}, http.StatusInternalServerError},
		{"deadline", context.DeadlineExceeded, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestServer(&fakeService{analyzeErr: tc.err})
			code, _ := call(t, e, http.MethodGet, "/api/v1/signals/AAPL")
			assert.Equal(t, tc.want, code)
		})
	}
}

func TestAnalyze_UnavailableNamesStage(t *testing.T) {
	e, _ := newTestServer(&fakeService{analyzeErr: models.Unavailable(models.StageSentiment, errors.New("no posts"))})
	_, env := call(t, e, http.MethodGet, "/api/v1/signals/AAPL")
	var errs []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_UPSTREAM_UNAVAILABLE", errs[0]["code"])
	assert.Equal(t, "sentiment", errs[0]["params"].(map[string]interface{})["stage"])
}

func TestAnalyze_TickerTooLong(t *testing.T) {
	e, _ := newTestServer(&fakeService{})
	code, env := call(t, e, http.MethodGet, "/api/v1/signals/ABCDEFGHIJKLMN")
	assert.Equal(t, http.StatusBadRequest, code)
	var errs []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_INVALID_TICKER", errs[0]["code"])
	assert.Equal(t, "ticker", errs[0]["field"])

	code, _ = call(t, e, http.MethodDelete, "/api/v1/cache/A$B")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCache_GetAndInvalidate(t *testing.T) {
	svc := &fakeService{}
	e, _ := newTestServer(svc)

	code, _ := call(t, e, http.MethodGet, "/api/v1/cache/aapl")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = call(t, e, http.MethodDelete, "/api/v1/cache/aapl")
	assert.Equal(t, http.StatusNotFound, code)

	svc.cached = &models.CacheEntry{Ticker: "AAPL", LastUpdated: time.Now()}
	svc.invalidated = true
	code, _ = call(t, e, http.MethodGet, "/api/v1/cache/aapl")
	assert.Equal(t, http.StatusOK, code)
	code, env := call(t, e, http.MethodDelete, "/api/v1/cache/aapl")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ticker":"AAPL","invalidated":true}`, string(env.Data))
}

func TestCacheStats_Defaults(t *testing.T) {
	svc := &fakeService{}
	e, _ := newTestServer(svc)
	code, _ := call(t, e, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, time.Hour, svc.lastFresh)
}

func TestTrending_LimitValidation(t *testing.T) {
	svc := &fakeService{}
	e, _ := newTestServer(svc)

	code, _ := call(t, e, http.MethodGet, "/api/v1/trending")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 10, svc.lastLimit)

	code, _ = call(t, e, http.MethodGet, "/api/v1/trending?limit=500")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPerformance_Since(t *testing.T) {
	svc := &fakeService{}
	e, h := newTestServer(svc)

	code, _ := call(t, e, http.MethodGet, "/api/v1/performance")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, h.now().Add(-24*time.Hour), svc.lastSince)
	assert.Equal(t, 5, svc.lastTop)

	code, _ = call(t, e, http.MethodGet, "/api/v1/performance?since=2h&top=3")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, h.now().Add(-2*time.Hour), svc.lastSince)
	assert.Equal(t, 3, svc.lastTop)

	code, _ = call(t, e, http.MethodGet, "/api/v1/performance?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBatch(t *testing.T) {
	svc := &fakeService{}
	e, _ := newTestServer(svc)

	code, _ := call(t, e, http.MethodGet, "/api/v1/batch?tickers=aapl,%20msft,AAPL")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"AAPL", "MSFT"}, svc.lastBatch)

	code, _ = call(t, e, http.MethodGet, "/api/v1/batch?tickers=A,B,C,D,E,F,G,H,I,J,K")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, e, http.MethodGet, "/api/v1/batch")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(&fakeService{})
	code, env := call(t, e, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"calibration_version":"v1"`)
}
