package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/chatbridge/internal/channel/adapters/local"
)

// LocalHandler exposes the local transport: inject messages and stream replies.
type LocalHandler struct {
	adapter *local.LocalAdapter
	logger  *slog.Logger
}

func NewLocalHandler(log *slog.Logger, adapter *local.LocalAdapter) *LocalHandler {
	return &LocalHandler{
		adapter: adapter,
		logger:  log.With(slog.String("handler", "local")),
	}
}

// Register mounts the local routes; nothing is mounted when the transport is disabled.
func (h *LocalHandler) Register(e *echo.Echo) {
	if h.adapter == nil {
		return
	}
	group := e.Group("/v1/local")
	group.POST("/messages", h.PostMessage)
	group.GET("/stream", h.Stream)
}

// PostMessage godoc
// @Summary Inject a message into the local transport
// @Tags local
// @Param payload body local.InjectRequest true "Inbound message"
// @Success 202 {object} channel.InboundMessage
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /v1/local/messages [post]
func (h *LocalHandler) PostMessage(c echo.Context) error {
	var req local.InjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msg, err := h.adapter.Inject(c.Request().Context(), req)
	if errors.Is(err, local.ErrNotConnected) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if err != nil && msg.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, msg)
}

// Stream godoc
// @Summary Stream replies sent to a local chat as server-sent events
// @Tags local
// @Param chat_id query string true "Chat ID"
// @Router /v1/local/stream [get]
func (h *LocalHandler) Stream(c echo.Context) error {
	chatID := strings.TrimSpace(c.QueryParam("chat_id"))
	if chatID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat_id is required")
	}
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	writer := bufio.NewWriter(c.Response().Writer)
	streamID, stream, cancel := h.adapter.Hub().Subscribe(chatID)
	defer cancel()
	h.logger.Debug("stream opened", slog.String("chat_id", chatID), slog.String("stream_id", streamID))

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case event, ok := <-stream:
			if !ok {
				return nil
			}
			data, err := formatLocalEvent(event)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(writer, "event: %s\ndata: %s\n\n", event.Kind, data)
			writer.Flush()
			flusher.Flush()
		}
	}
}

func formatLocalEvent(event local.RouteHubEvent) ([]byte, error) {
	if event.Kind == local.EventTyping {
		return json.Marshal(map[string]any{"chat_id": event.ChatID, "at": event.At})
	}
	return json.Marshal(event.Message)
}
