package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"cors-dev-proxy/internal/config"
)

// RequestID tags every request with a UUID in X-Request-Id unless the
// caller already sent one.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// RateLimiter returns a per-IP limiter, or nil when rate limiting is disabled.
func RateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return nil
	}
	store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.RequestsPerSecond))
	return echomw.RateLimiter(store)
}
