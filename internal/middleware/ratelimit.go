package middleware

import (
	"math"
	"strconv"
	"strings"

	"MarketPulse/internal/service/ratelimit"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RateLimit enforces per-client quotas keyed by the real client IP.
// Paths ending in one of exempt (health probes) are never counted. A failing
// counter store lets the request through.
func RateLimit(lim *ratelimit.WindowLimiter, l *applogger.Logger, exempt ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			for _, e := range exempt {
				if strings.HasSuffix(path, e) {
					return next(c)
				}
			}

			d, err := lim.Allow(c.Request().Context(), c.RealIP())
			if err != nil {
				l.Warn("rate limit check failed", applogger.Error(err))
				return next(c)
			}
			h := c.Response().Header()
			if d.Limit > 0 {
				h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
				h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			}
			if !d.Allowed {
				secs := int64(math.Ceil(d.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.FormatInt(secs, 10))
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded").
					WithParam("window", d.Window).
					WithParam("retry_after_seconds", secs))
			}
			return next(c)
		}
	}
}
