package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"cors-dev-proxy/internal/model"
	"cors-dev-proxy/internal/service"
)

// internalErrorMessage is the generic message sent with transport failures.
const internalErrorMessage = "Error interno del servidor"

// ErrorBody is the JSON body returned when the proxy itself fails.
type ErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ProxyHandler forwards requests under the proxy prefix to the upstream.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the request upstream and relays status, headers and body
// back unchanged.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     req.URL.EscapedPath(),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	h.logger.Debug("upstream responded",
		"status", resp.StatusCode,
		"target", resp.TargetURL,
		"mode", resp.Mode.String(),
	)

	// Text mode reads the full body before committing the status so a broken
	// upstream stream can still be reported as a proxy error.
	var buffered []byte
	if resp.Mode == model.ModeText {
		buffered, err = io.ReadAll(resp.Body)
		if err != nil {
			return h.mapError(c, err)
		}
	}

	// Upstream values replace anything middleware already set (CORS, request id).
	dst := c.Response().Header()
	for key, vals := range resp.Header {
		dst[key] = slices.Clone(vals)
	}

	c.Response().WriteHeader(resp.StatusCode)

	if resp.Mode == model.ModeText {
		if _, err := c.Response().Write(buffered); err != nil {
			h.logger.Error("writing response body", "err", err, "path", req.URL.Path)
		}
		return nil
	}

	// Binary mode streams raw bytes. A failure here happens after the status
	// line went out, so the client sees a truncated body; log it.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
			"target", resp.TargetURL,
		)
	}

	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", err,
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, service.ErrOutsidePrefix) {
		return c.JSON(http.StatusNotFound, ErrorBody{Message: "ruta fuera del prefijo del proxy"})
	}

	if errors.Is(err, service.ErrReadBody) {
		return c.JSON(http.StatusBadRequest, ErrorBody{
			Message: "no se pudo leer el cuerpo de la petición",
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusInternalServerError, ErrorBody{
		Message: internalErrorMessage,
		Error:   err.Error(),
	})
}
