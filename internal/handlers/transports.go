package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/chatbridge/internal/channel"
)

// TransportLister reports transport connectivity.
type TransportLister interface {
	Status() []channel.TransportStatus
}

type TransportsHandler struct {
	lister TransportLister
	logger *slog.Logger
}

func NewTransportsHandler(log *slog.Logger, lister TransportLister) *TransportsHandler {
	return &TransportsHandler{
		lister: lister,
		logger: log.With(slog.String("handler", "transports")),
	}
}

func (h *TransportsHandler) Register(e *echo.Echo) {
	e.GET("/v1/transports", h.List)
}

// List godoc
// @Summary List transports and their connectivity
// @Tags transports
// @Success 200 {array} channel.TransportStatus
// @Router /v1/transports [get]
func (h *TransportsHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.lister.Status())
}
