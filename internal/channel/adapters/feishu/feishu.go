// Package feishu implements the Feishu (Lark) transport over the long-connection event stream.
package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/channel/adapters/adapterutil"
)

// Type is the registered transport identifier for Feishu.
const Type channel.Type = "feishu"

type FeishuAdapter struct {
	logger       *slog.Logger
	cfg          Config
	newMessenger func(Config) messenger

	mu       sync.RWMutex
	api      messenger
	channels map[string]string
}

func NewFeishuAdapter(log *slog.Logger, cfg Config) *FeishuAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &FeishuAdapter{
		logger:       log.With(slog.String("adapter", "feishu")),
		cfg:          cfg.normalized(),
		newMessenger: newLarkMessenger,
		channels:     map[string]string{},
	}
}

func (a *FeishuAdapter) Type() channel.Type {
	return Type
}

func (a *FeishuAdapter) Connect(ctx context.Context, handler channel.InboundHandler, onError channel.ErrorHandler) (channel.Connection, error) {
	if err := a.cfg.validate(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.api = a.newMessenger(a.cfg)
	a.mu.Unlock()
	a.logger.Info("start")

	connCtx, cancel := context.WithCancel(ctx)
	eventDispatcher := dispatcher.NewEventDispatcher(a.cfg.VerificationToken, a.cfg.EncryptKey)
	eventDispatcher.OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
		a.dispatch(connCtx, event, handler)
		return nil
	})
	eventDispatcher.OnP2MessageReadV1(func(_ context.Context, _ *larkim.P2MessageReadV1) error {
		return nil
	})

	client := larkws.NewClient(
		a.cfg.AppID,
		a.cfg.AppSecret,
		larkws.WithEventHandler(eventDispatcher),
		larkws.WithLogger(newLarkSlogLogger(a.logger)),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)
	conn := channel.NewConnection(Type, func(context.Context) error {
		a.logger.Info("stop")
		cancel()
		a.mu.Lock()
		a.api = nil
		a.mu.Unlock()
		return nil
	})
	go func() {
		err := client.Start(connCtx)
		if connCtx.Err() != nil {
			return
		}
		conn.MarkDown()
		if err == nil {
			err = errors.New("feishu event stream stopped")
		}
		a.logger.Error("client start failed", slog.Any("error", err))
		if onError != nil {
			onError(Type, err)
		}
	}()
	return conn, nil
}

func (a *FeishuAdapter) dispatch(ctx context.Context, event *larkim.P2MessageReceiveV1, handler channel.InboundHandler) {
	msg, ok := toInbound(event, a.cfg.BotOpenID)
	if !ok {
		return
	}
	if !msg.IsDM {
		msg.ChannelName = a.channelName(ctx, msg.ChatID)
	}
	a.logger.Info("inbound received",
		slog.String("chat_id", msg.ChatID),
		slog.String("user_id", msg.UserID),
		slog.Bool("dm", msg.IsDM),
		slog.String("text", adapterutil.SummarizeText(msg.Content)),
	)
	if err := handler(ctx, msg); err != nil {
		a.logger.Error("handle inbound failed", slog.Any("error", err))
	}
}

// Send posts text to a chat. The first chunk is threaded onto ReplyToID when set.
func (a *FeishuAdapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	api, err := a.client()
	if err != nil {
		return err
	}
	if msg.IsEmpty() {
		return fmt.Errorf("message is required")
	}
	receiveID, receiveType, err := resolveFeishuReceiveID(strings.TrimSpace(msg.ChatID))
	if err != nil {
		return err
	}
	replyTo := strings.TrimSpace(msg.ReplyToID)
	for i, chunk := range channel.ChunkText(strings.TrimSpace(msg.Text), channel.FeishuTextLimit) {
		if i == 0 && replyTo != "" {
			err = api.ReplyText(ctx, replyTo, chunk)
		} else {
			err = api.CreateText(ctx, receiveType, receiveID, chunk)
		}
		if err != nil {
			a.logger.Error("send failed", slog.String("chat_id", receiveID), slog.Any("error", err))
			return err
		}
	}
	return nil
}

// SendTyping is a no-op: Feishu bots have no typing indicator.
func (a *FeishuAdapter) SendTyping(_ context.Context, _ string) error {
	_, err := a.client()
	return err
}

func (a *FeishuAdapter) client() (messenger, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.api == nil {
		return nil, errors.New("feishu not connected")
	}
	return a.api, nil
}

func (a *FeishuAdapter) channelName(ctx context.Context, chatID string) string {
	a.mu.RLock()
	name, ok := a.channels[chatID]
	api := a.api
	a.mu.RUnlock()
	if ok || api == nil {
		return name
	}
	name, err := api.ChatName(ctx, chatID)
	if err != nil {
		a.logger.Debug("resolve chat name failed", slog.String("chat_id", chatID), slog.Any("error", err))
		return ""
	}
	a.mu.Lock()
	a.channels[chatID] = name
	a.mu.Unlock()
	return name
}

// toInbound normalizes a message event. Non-text messages and app senders are skipped.
func toInbound(event *larkim.P2MessageReceiveV1, botOpenID string) (channel.InboundMessage, bool) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return channel.InboundMessage{}, false
	}
	message := event.Event.Message
	sender := event.Event.Sender
	if sender == nil || sender.SenderId == nil || deref(sender.SenderType) == "app" {
		return channel.InboundMessage{}, false
	}
	if deref(message.MessageType) != larkim.MsgTypeText {
		return channel.InboundMessage{}, false
	}
	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(deref(message.Content)), &content); err != nil {
		return channel.InboundMessage{}, false
	}
	text := strings.TrimSpace(stripMentionKeys(content.Text, message.Mentions))
	if text == "" {
		return channel.InboundMessage{}, false
	}
	userID := strings.TrimSpace(deref(sender.SenderId.OpenId))
	if userID == "" {
		userID = strings.TrimSpace(deref(sender.SenderId.UserId))
	}
	isDM := deref(message.ChatType) == "p2p"
	msg := channel.InboundMessage{
		ID:        deref(message.MessageId),
		ChatID:    strings.TrimSpace(deref(message.ChatId)),
		UserID:    userID,
		Content:   text,
		Timestamp: parseCreateTime(deref(message.CreateTime)),
		Transport: Type,
		IsDM:      isDM,
	}
	if !isDM {
		msg.MentionsBot = mentionsBot(message.Mentions, botOpenID)
	}
	return msg, msg.ChatID != "" && msg.UserID != ""
}

// mentionsBot matches the bot's open_id when known. Without it any mention
// counts, since Feishu only delivers group messages that @ the bot by default.
func mentionsBot(mentions []*larkim.MentionEvent, botOpenID string) bool {
	for _, m := range mentions {
		if m == nil {
			continue
		}
		if botOpenID == "" {
			return true
		}
		if m.Id != nil && deref(m.Id.OpenId) == botOpenID {
			return true
		}
	}
	return false
}

// stripMentionKeys replaces "@_user_N" placeholders with "@name".
func stripMentionKeys(text string, mentions []*larkim.MentionEvent) string {
	for _, m := range mentions {
		if m == nil || deref(m.Key) == "" {
			continue
		}
		text = strings.ReplaceAll(text, deref(m.Key), "@"+deref(m.Name))
	}
	return text
}

func parseCreateTime(raw string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

// resolveFeishuReceiveID accepts "open_id:", "user_id:" and "chat_id:" prefixes;
// bare IDs are chat IDs, which is what inbound messages carry.
func resolveFeishuReceiveID(raw string) (string, string, error) {
	if raw == "" {
		return "", "", fmt.Errorf("feishu target is required")
	}
	if id, ok := strings.CutPrefix(raw, "open_id:"); ok {
		return id, larkim.ReceiveIdTypeOpenId, nil
	}
	if id, ok := strings.CutPrefix(raw, "user_id:"); ok {
		return id, larkim.ReceiveIdTypeUserId, nil
	}
	if id, ok := strings.CutPrefix(raw, "chat_id:"); ok {
		return id, larkim.ReceiveIdTypeChatId, nil
	}
	return raw, larkim.ReceiveIdTypeChatId, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
