package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"cors-dev-proxy/internal/config"
)

// Greeting is the body served at "/".
const Greeting = "¡Hola, mundito"

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the greeting, health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Root returns the fixed greeting.
func (h *HealthHandler) Root(c echo.Context) error {
	return c.String(http.StatusOK, Greeting)
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":              "ok",
		"version":             string(h.version),
		"upstream_url":        h.cfg.Upstream.BaseURL,
		"prefix":              h.cfg.Proxy.Prefix,
		"upstream_prefix":     h.cfg.Proxy.UpstreamPrefix,
		"verify_certificates": h.cfg.Upstream.VerifyCertificates,
	})
}
