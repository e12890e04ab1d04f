package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ZipMock is the canned body served instead of calling the real
// "download everything as zip" endpoint.
type ZipMock struct {
	HasAttachments bool     `json:"tieneAnexos"`
	Files          []string `json:"archivos"`
	ZipBase64      string   `json:"zipBase64"`
}

var zipMock = ZipMock{
	HasAttachments: true,
	Files: []string{
		"documento1.pdf",
		"documento2.jpg",
		"documento3.docx",
	},
	ZipBase64: base64.StdEncoding.EncodeToString([]byte("Contenido de prueba del archivo ZIP")),
}

// MockHandler serves local stand-ins for upstream endpoints.
type MockHandler struct {
	logger *slog.Logger
}

// NewMockHandler creates a MockHandler.
func NewMockHandler(logger *slog.Logger) *MockHandler {
	return &MockHandler{logger: logger.With("component", "mock_handler")}
}

// DownloadAllAsZip answers with a fixed attachment listing. No upstream call is made.
func (h *MockHandler) DownloadAllAsZip(c echo.Context) error {
	h.logger.Info("serving mock response", "path", c.Request().URL.Path)

	c.Response().Header().Set("Content-Disposition", `attachment; filename="documentos.zip"`)
	return c.JSON(http.StatusOK, zipMock)
}
