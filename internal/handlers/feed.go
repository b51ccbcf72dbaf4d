package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/chatbridge/internal/auth"
	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/feed"
)

// maxWait caps a single long-poll on /v1/messages/next.
const maxWait = 10 * time.Minute

// MessageFeed is the consumer side of the message feed.
type MessageFeed interface {
	Next(ctx context.Context, reply string) (channel.InboundMessage, error)
}

// OutboundSender sends over a named transport.
type OutboundSender interface {
	Send(ctx context.Context, transport channel.Type, msg channel.OutboundMessage) error
}

type FeedHandler struct {
	feed   MessageFeed
	sender OutboundSender
	logger *slog.Logger
}

func NewFeedHandler(log *slog.Logger, f MessageFeed, sender OutboundSender) *FeedHandler {
	return &FeedHandler{
		feed:   f,
		sender: sender,
		logger: log.With(slog.String("handler", "feed")),
	}
}

func (h *FeedHandler) Register(e *echo.Echo) {
	group := e.Group("/v1/messages")
	group.POST("/next", h.Next)
	group.POST("/send", h.Send)
}

// NextRequest optionally answers the previous message and bounds the wait.
type NextRequest struct {
	Reply   string `json:"reply,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

// SendRequest addresses a message to any chat on any transport.
type SendRequest struct {
	Transport string `json:"transport"`
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

// Next godoc
// @Summary Wait for the next authorized message
// @Description Sends the optional reply to the previously delivered message, then blocks until a message is available.
// @Tags messages
// @Param payload body NextRequest false "Reply and wait timeout"
// @Success 200 {object} channel.InboundMessage
// @Success 204 "No message before the timeout"
// @Failure 409 {object} ErrorResponse
// @Router /v1/messages/next [post]
func (h *FeedHandler) Next(c echo.Context) error {
	var req NextRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	wait := maxWait
	if raw := strings.TrimSpace(req.Timeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid timeout")
		}
		wait = min(d, maxWait)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), wait)
	defer cancel()

	msg, err := h.feed.Next(ctx, req.Reply)
	switch {
	case err == nil:
		subject, _ := auth.SubjectFromContext(c)
		h.logger.Debug("message delivered", slog.String("consumer", subject), slog.String("transport", msg.Transport.String()))
		return c.JSON(http.StatusOK, msg)
	case errors.Is(err, feed.ErrConsumerBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, feed.ErrNoPreviousMessage):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}

// Send godoc
// @Summary Send a message
// @Tags messages
// @Param payload body SendRequest true "Outbound message"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /v1/messages/send [post]
func (h *FeedHandler) Send(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	transport, err := channel.ParseType(req.Transport)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ChatID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat_id is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	err = h.sender.Send(c.Request().Context(), transport, channel.OutboundMessage{
		ChatID:    req.ChatID,
		Text:      req.Text,
		ReplyToID: strings.TrimSpace(req.ReplyTo),
	})
	if errors.Is(err, channel.ErrUnknownTransport) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
