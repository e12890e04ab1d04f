// Package handler holds the Echo handlers and route table.
package handler

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cors-dev-proxy/internal/config"
	"cors-dev-proxy/internal/metrics"
)

// Handlers groups every route handler for injection.
type Handlers struct {
	Proxy    *ProxyHandler
	Health   *HealthHandler
	Mock     *MockHandler
	LoadTest *LoadTestHandler
}

// RegisterRoutes wires all route handlers onto the Echo instance. The mock
// and load-test routes are static and win over the proxy wildcard. m may be
// nil when metrics are disabled.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, h Handlers, m *metrics.Metrics) {
	e.GET("/", h.Health.Root)
	e.GET("/healthz", h.Health.Healthz)
	e.GET("/proxy/status", h.Health.Status)

	prefix := strings.TrimSuffix(cfg.Proxy.Prefix, "/")
	e.GET(prefix+"/DescargarTodoComoZip", h.Mock.DownloadAllAsZip)
	e.POST(prefix+"/test-multiple-calls", h.LoadTest.Handle)

	e.Any(prefix, h.Proxy.Handle)
	e.Any(prefix+"/*", h.Proxy.Handle)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
