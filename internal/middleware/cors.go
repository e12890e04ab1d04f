// Package middleware provides Echo middleware for CORS, logging, metrics and
// request limiting.
package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"cors-dev-proxy/internal/config"
)

// CORS returns an Echo middleware enforcing the fixed allow-list. Preflight
// requests from an allowed origin are answered here and never reach the
// upstream.
func CORS(cfg config.CORSConfig) echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
		AllowHeaders: cfg.AllowHeaders,
	})
}
