package api

import (
	"context"
	"net/http"
	"time"

	models "MarketPulse/internal/domain/models"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// SignalService is the engine surface the HTTP layer needs.
type SignalService interface {
	Analyze(ctx context.Context, ticker string, forceRefresh bool) (models.Analysis, error)
	GetCached(ctx context.Context, ticker string) (*models.CacheEntry, error)
	Invalidate(ctx context.Context, ticker string) (bool, error)
	CacheStats(ctx context.Context, freshWithin time.Duration) (models.CacheStats, error)
	Trending(ctx context.Context, limit int) ([]models.TickerCount, error)
	Performance(ctx context.Context, since time.Time, top int) (models.Performance, error)
	Batch(ctx context.Context, tickers []string) (map[string]models.BatchItem, error)
	CalibrationVersion() string
}

// SignalsEchoHandler serves the signal API under /api/v1.
type SignalsEchoHandler struct {
	logger *xlogger.Logger
	svc    SignalService
	now    func() time.Time
}

func NewSignalsEchoHandler(logger *xlogger.Logger, svc SignalService) *SignalsEchoHandler {
	return &SignalsEchoHandler{logger: logger, svc: svc, now: time.Now}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/health", h.Health)
	g.GET("/signals/:ticker", h.Analyze)
	g.GET("/cache/stats", h.CacheStats)
	g.GET("/cache/:ticker", h.GetCached)
	g.DELETE("/cache/:ticker", h.Invalidate)
	g.GET("/trending", h.Trending)
	g.GET("/performance", h.Performance)
	g.GET("/batch", h.Batch)
}

func (h *SignalsEchoHandler) fail(c echo.Context, msg string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(msg, xlogger.String("path", c.Path()), xlogger.Error(err))
	} else {
		h.logger.Debug(msg, xlogger.String("path", c.Path()), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *SignalsEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":              "ok",
		"calibration_version": h.svc.CalibrationVersion(),
		"time":                h.now().UTC(),
	})
}

func (h *SignalsEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Analyze(c.Request().Context(), req.Ticker, req.ForceRefresh)
	if err != nil {
		return h.fail(c, "analyze failed", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) GetCached(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	entry, err := h.svc.GetCached(c.Request().Context(), req.Ticker)
	if err != nil {
		return h.fail(c, "cache lookup failed", err)
	}
	if entry == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no cached signal for %s", util.NormalizeTicker(req.Ticker)))
	}
	return xhttp.SuccessResponse(c, entry)
}

func (h *SignalsEchoHandler) Invalidate(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ok, err := h.svc.Invalidate(c.Request().Context(), req.Ticker)
	if err != nil {
		return h.fail(c, "invalidate failed", err)
	}
	ticker := util.NormalizeTicker(req.Ticker)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no cached signal for %s", ticker))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"ticker": ticker, "invalidated": true})
}

func (h *SignalsEchoHandler) CacheStats(c echo.Context) error {
	req := &models.CacheStatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	stats, err := h.svc.CacheStats(c.Request().Context(), time.Duration(req.FreshMinutes)*time.Minute)
	if err != nil {
		return h.fail(c, "cache stats failed", err)
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *SignalsEchoHandler) Trending(c echo.Context) error {
	req := &models.TrendingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.svc.Trending(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, "trending failed", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, rows)
}

func (h *SignalsEchoHandler) Performance(c echo.Context) error {
	req := &models.PerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since, ok := util.ParseSince(req.Since, h.now(), 24*time.Hour)
	if !ok {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_INVALID_SINCE",
			Field:   "since",
			Message: "since must be a duration, RFC3339 time or unix seconds",
		}})
	}
	perf, err := h.svc.Performance(c.Request().Context(), since, req.Top)
	if err != nil {
		return h.fail(c, "performance failed", err)
	}
	return xhttp.SuccessResponse(c, perf)
}

func (h *SignalsEchoHandler) Batch(c echo.Context) error {
	req := &models.BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.svc.Batch(c.Request().Context(), util.SplitTickers(req.Tickers))
	if err != nil {
		return h.fail(c, "batch failed", err)
	}
	return xhttp.SuccessResponse(c, out)
}
