package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/channel/adapters/adapterutil"
)

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type TelegramAdapter struct {
	logger *slog.Logger
	cfg    Config
	newBot func(token string) (botAPI, tgbotapi.User, error)

	mu   sync.RWMutex
	bot  botAPI
	self tgbotapi.User
}

func NewTelegramAdapter(log *slog.Logger, cfg Config) *TelegramAdapter {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("adapter", "telegram"))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})
	return &TelegramAdapter{
		logger: logger,
		cfg:    cfg.normalized(),
		newBot: dialBot,
	}
}

func dialBot(token string) (botAPI, tgbotapi.User, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, tgbotapi.User{}, err
	}
	return bot, bot.Self, nil
}

func (a *TelegramAdapter) Type() channel.Type {
	return Type
}

func (a *TelegramAdapter) Connect(ctx context.Context, handler channel.InboundHandler, onError channel.ErrorHandler) (channel.Connection, error) {
	if err := a.cfg.validate(); err != nil {
		return nil, err
	}
	bot, self, err := a.newBot(a.cfg.BotToken)
	if err != nil {
		a.logger.Error("create bot failed", slog.Any("error", err))
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	a.mu.Lock()
	a.bot = bot
	a.self = self
	a.mu.Unlock()
	a.logger.Info("start", slog.String("bot", self.UserName))

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = a.cfg.PollTimeout
	updates := bot.GetUpdatesChan(updateConfig)
	connCtx, cancel := context.WithCancel(ctx)

	var once sync.Once
	stopPolling := func() {
		once.Do(func() {
			cancel()
			bot.StopReceivingUpdates()
		})
	}
	conn := channel.NewConnection(Type, func(context.Context) error {
		a.logger.Info("stop")
		stopPolling()
		return nil
	})

	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					conn.MarkDown()
					if onError != nil {
						onError(Type, errors.New("telegram updates channel closed"))
					}
					return
				}
				msg, ok := toInbound(update.Message, self)
				if !ok {
					continue
				}
				a.logger.Info("inbound received",
					slog.String("chat_id", msg.ChatID),
					slog.String("user_id", msg.UserID),
					slog.Bool("dm", msg.IsDM),
					slog.String("text", adapterutil.SummarizeText(msg.Content)),
				)
				if err := handler(connCtx, msg); err != nil {
					a.logger.Error("handle inbound failed", slog.Any("error", err))
				}
			}
		}
	}()
	return conn, nil
}

func (a *TelegramAdapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	bot, err := a.client()
	if err != nil {
		return err
	}
	if msg.IsEmpty() {
		return fmt.Errorf("message is required")
	}
	replyTo := parseMessageID(msg.ReplyToID)
	for i, chunk := range channel.ChunkText(strings.TrimSpace(msg.Text), channel.TelegramTextLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := newTextMessage(msg.ChatID, chunk)
		if err != nil {
			return err
		}
		if i == 0 && replyTo > 0 {
			out.ReplyToMessageID = replyTo
		}
		if _, err := bot.Send(out); err != nil {
			a.logger.Error("send failed", slog.String("chat_id", msg.ChatID), slog.Any("error", err))
			return err
		}
	}
	return nil
}

func (a *TelegramAdapter) SendTyping(ctx context.Context, chatID string) error {
	bot, err := a.client()
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id must be numeric: %q", chatID)
	}
	_, err = bot.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping))
	return err
}

func (a *TelegramAdapter) client() (botAPI, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.bot == nil {
		return nil, errors.New("telegram not connected")
	}
	return a.bot, nil
}

func newTextMessage(target, text string) (tgbotapi.MessageConfig, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return tgbotapi.MessageConfig{}, fmt.Errorf("telegram target is required")
	}
	if strings.HasPrefix(target, "@") {
		return tgbotapi.NewMessageToChannel(target, text), nil
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("telegram target must be @username or chat_id")
	}
	return tgbotapi.NewMessage(chatID, text), nil
}

// toInbound normalizes a Telegram message. Messages from bots, without a
// sender, or without text are skipped.
func toInbound(m *tgbotapi.Message, self tgbotapi.User) (channel.InboundMessage, bool) {
	if m == nil || m.From == nil || m.From.IsBot || m.Chat == nil {
		return channel.InboundMessage{}, false
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		text = strings.TrimSpace(m.Caption)
	}
	if text == "" {
		return channel.InboundMessage{}, false
	}
	isDM := m.Chat.IsPrivate()
	msg := channel.InboundMessage{
		ID:        strconv.Itoa(m.MessageID),
		ChatID:    strconv.FormatInt(m.Chat.ID, 10),
		UserID:    strconv.FormatInt(m.From.ID, 10),
		Username:  senderName(m.From),
		Content:   text,
		Timestamp: time.Unix(int64(m.Date), 0).UTC(),
		Transport: Type,
		IsDM:      isDM,
	}
	if !isDM {
		msg.ChannelName = strings.TrimSpace(m.Chat.Title)
		if msg.ChannelName == "" {
			msg.ChannelName = strings.TrimSpace(m.Chat.UserName)
		}
		msg.MentionsBot = adapterutil.ContainsMention(text, self.UserName) || isReplyToBot(m, self)
	}
	return msg, true
}

func senderName(u *tgbotapi.User) string {
	if name := strings.TrimSpace(u.UserName); name != "" {
		return name
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func isReplyToBot(m *tgbotapi.Message, self tgbotapi.User) bool {
	return m.ReplyToMessage != nil && m.ReplyToMessage.From != nil && self.ID != 0 && m.ReplyToMessage.From.ID == self.ID
}

func parseMessageID(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}
