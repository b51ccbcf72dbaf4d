// Package local implements an in-process transport. Inbound messages are
// injected over HTTP and replies are published to subscribers of a RouteHub.
package local

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/channel/adapters/adapterutil"
)

// Type is the registered transport identifier for the local transport.
const Type channel.Type = "local"

var ErrNotConnected = errors.New("local transport not connected")

// InjectRequest describes a message posted into the local transport.
type InjectRequest struct {
	ChatID      string `json:"chat_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	Text        string `json:"text"`
	IsDM        bool   `json:"is_dm"`
	MentionsBot bool   `json:"mentions_bot,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
}

type LocalAdapter struct {
	logger *slog.Logger
	hub    *RouteHub
	now    func() time.Time

	mu      sync.RWMutex
	handler channel.InboundHandler
}

func NewLocalAdapter(log *slog.Logger, hub *RouteHub) *LocalAdapter {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewRouteHub()
	}
	return &LocalAdapter{
		logger: log.With(slog.String("adapter", "local")),
		hub:    hub,
		now:    time.Now,
	}
}

func (a *LocalAdapter) Type() channel.Type {
	return Type
}

// Hub returns the hub replies are published to.
func (a *LocalAdapter) Hub() *RouteHub {
	return a.hub
}

func (a *LocalAdapter) Connect(_ context.Context, handler channel.InboundHandler, _ channel.ErrorHandler) (channel.Connection, error) {
	if handler == nil {
		return nil, errors.New("local inbound handler is required")
	}
	a.mu.Lock()
	a.handler = handler
	a.mu.Unlock()
	a.logger.Info("start")
	return channel.NewConnection(Type, func(context.Context) error {
		a.logger.Info("stop")
		a.mu.Lock()
		a.handler = nil
		a.mu.Unlock()
		return nil
	}), nil
}

// Inject normalizes req into an inbound message and hands it to the connected handler.
func (a *LocalAdapter) Inject(ctx context.Context, req InjectRequest) (channel.InboundMessage, error) {
	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return channel.InboundMessage{}, ErrNotConnected
	}
	chatID := strings.TrimSpace(req.ChatID)
	userID := strings.TrimSpace(req.UserID)
	text := strings.TrimSpace(req.Text)
	switch {
	case chatID == "":
		return channel.InboundMessage{}, errors.New("chat_id is required")
	case userID == "":
		return channel.InboundMessage{}, errors.New("user_id is required")
	case text == "":
		return channel.InboundMessage{}, errors.New("text is required")
	}
	msg := channel.InboundMessage{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		Username:  strings.TrimSpace(req.Username),
		Content:   text,
		Timestamp: a.now().UTC(),
		Transport: Type,
		IsDM:      req.IsDM,
	}
	if !req.IsDM {
		msg.MentionsBot = req.MentionsBot
		msg.ChannelName = strings.TrimSpace(req.ChannelName)
	}
	a.logger.Info("inbound received",
		slog.String("chat_id", msg.ChatID),
		slog.String("user_id", msg.UserID),
		slog.Bool("dm", msg.IsDM),
		slog.String("text", adapterutil.SummarizeText(msg.Content)),
	)
	return msg, handler(ctx, msg)
}

func (a *LocalAdapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.IsEmpty() {
		return errors.New("message is required")
	}
	chatID := strings.TrimSpace(msg.ChatID)
	if chatID == "" {
		return errors.New("local chat id is required")
	}
	msg.ChatID = chatID
	n := a.hub.Publish(RouteHubEvent{Kind: EventMessage, ChatID: chatID, Message: msg, At: a.now().UTC()})
	a.logger.Debug("outbound published", slog.String("chat_id", chatID), slog.Int("subscribers", n))
	return nil
}

func (a *LocalAdapter) SendTyping(ctx context.Context, chatID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return errors.New("local chat id is required")
	}
	a.hub.Publish(RouteHubEvent{Kind: EventTyping, ChatID: chatID, At: a.now().UTC()})
	return nil
}
