package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"cors-dev-proxy/internal/service"
)

// LoadTestHandler exposes the fan-out helper.
type LoadTestHandler struct {
	service *service.LoadTestService
	logger  *slog.Logger
}

// NewLoadTestHandler creates a LoadTestHandler.
func NewLoadTestHandler(svc *service.LoadTestService, logger *slog.Logger) *LoadTestHandler {
	return &LoadTestHandler{
		service: svc,
		logger:  logger.With("component", "loadtest_handler"),
	}
}

// Handle decodes {"iterations", "payload"}, runs the fan-out and returns
// every settled attempt. Input problems answer 400 before any upstream call.
func (h *LoadTestHandler) Handle(c echo.Context) error {
	var req service.LoadTestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorBody{
			Message: "cuerpo de la petición inválido",
			Error:   err.Error(),
		})
	}

	res, err := h.service.Run(c.Request().Context(), &req)
	switch {
	case errors.Is(err, service.ErrMissingPayload):
		return c.JSON(http.StatusBadRequest, ErrorBody{
			Message: "Se requiere el campo 'payload' con los datos para enviar.",
		})
	case errors.Is(err, service.ErrIterations):
		return c.JSON(http.StatusBadRequest, ErrorBody{
			Message: "El campo 'iterations' está fuera del rango permitido.",
			Error:   err.Error(),
		})
	case err != nil:
		h.logger.Error("load test failed", "err", err)
		return c.JSON(http.StatusInternalServerError, ErrorBody{
			Message: "Error al ejecutar las múltiples peticiones",
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, res)
}
