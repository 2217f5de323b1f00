package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/pkg/cache"
	applogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimit(t *testing.T) {
	store := cache.NewMemoryCache()
	defer store.Close()
	lim := ratelimit.NewWindowLimiter(store, ratelimit.Window{Name: "minute", Limit: 2, Period: time.Minute})

	e := echo.New()
	e.Use(RateLimit(lim, applogger.Nop(), "/health"))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/api/v1/signals/:ticker", ok)
	e.GET("/api/v1/health", ok)

	do := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("/api/v1/signals/AAPL", "10.0.0.1").Code)
	rec := do("/api/v1/signals/MSFT", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do("/api/v1/signals/NVDA", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Health stays reachable and other clients have their own quota.
	assert.Equal(t, http.StatusOK, do("/api/v1/health", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do("/api/v1/signals/AAPL", "10.0.0.2").Code)
}
