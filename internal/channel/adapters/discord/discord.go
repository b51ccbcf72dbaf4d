// Package discord implements the Discord transport over the gateway websocket.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/channel/adapters/adapterutil"
)

// Type is the registered transport identifier for Discord.
const Type channel.Type = "discord"

const intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

// session is the subset of *discordgo.Session the adapter uses.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

type DiscordAdapter struct {
	logger     *slog.Logger
	cfg        Config
	newSession func(token string) (session, error)

	mu       sync.RWMutex
	session  session
	selfID   string
	channels map[string]string
}

func NewDiscordAdapter(log *slog.Logger, cfg Config) *DiscordAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &DiscordAdapter{
		logger:     log.With(slog.String("adapter", "discord")),
		cfg:        cfg.normalized(),
		newSession: dialSession,
		channels:   map[string]string{},
	}
}

func dialSession(token string) (session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = intents
	return s, nil
}

func (a *DiscordAdapter) Type() channel.Type {
	return Type
}

func (a *DiscordAdapter) Connect(ctx context.Context, handler channel.InboundHandler, onError channel.ErrorHandler) (channel.Connection, error) {
	if err := a.cfg.validate(); err != nil {
		return nil, err
	}
	s, err := a.newSession(a.cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("discord connect: %w", err)
	}
	connCtx, cancel := context.WithCancel(ctx)

	removeReady := s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User == nil {
			return
		}
		a.mu.Lock()
		a.selfID = r.User.ID
		a.mu.Unlock()
		a.logger.Info("ready", slog.String("bot", r.User.Username))
	})
	removeMessage := s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Message == nil {
			return
		}
		msg, ok := toInbound(m.Message, a.self(), a.channelName(m.ChannelID, m.GuildID))
		if !ok {
			return
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
	})
	// discordgo reconnects the gateway itself; the connection stays up.
	removeDisconnect := s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		if onError != nil {
			onError(Type, errors.New("discord gateway disconnected"))
		}
	})

	if err := s.Open(); err != nil {
		cancel()
		removeReady()
		removeMessage()
		removeDisconnect()
		a.logger.Error("open gateway failed", slog.Any("error", err))
		return nil, fmt.Errorf("discord open: %w", err)
	}
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
	a.logger.Info("start")

	conn := channel.NewConnection(Type, func(context.Context) error {
		a.logger.Info("stop")
		cancel()
		removeReady()
		removeMessage()
		removeDisconnect()
		a.mu.Lock()
		if a.session == s {
			a.session = nil
		}
		a.mu.Unlock()
		return s.Close()
	})
	return conn, nil
}

func (a *DiscordAdapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	s, err := a.client()
	if err != nil {
		return err
	}
	if msg.IsEmpty() {
		return fmt.Errorf("message is required")
	}
	chatID := strings.TrimSpace(msg.ChatID)
	if chatID == "" {
		return fmt.Errorf("discord channel id is required")
	}
	replyTo := strings.TrimSpace(msg.ReplyToID)
	for i, chunk := range channel.ChunkText(strings.TrimSpace(msg.Text), channel.DiscordTextLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		data := &discordgo.MessageSend{Content: chunk}
		if i == 0 && replyTo != "" {
			data.Reference = &discordgo.MessageReference{MessageID: replyTo, ChannelID: chatID}
		}
		if _, err := s.ChannelMessageSendComplex(chatID, data, discordgo.WithContext(ctx)); err != nil {
			a.logger.Error("send failed", slog.String("chat_id", chatID), slog.Any("error", err))
			return err
		}
	}
	return nil
}

func (a *DiscordAdapter) SendTyping(ctx context.Context, chatID string) error {
	s, err := a.client()
	if err != nil {
		return err
	}
	return s.ChannelTyping(strings.TrimSpace(chatID), discordgo.WithContext(ctx))
}

func (a *DiscordAdapter) client() (session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil, errors.New("discord not connected")
	}
	return a.session, nil
}

func (a *DiscordAdapter) self() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selfID
}

// channelName returns the cached name of a guild channel, fetching it once.
func (a *DiscordAdapter) channelName(channelID, guildID string) string {
	if guildID == "" {
		return ""
	}
	a.mu.RLock()
	name, ok := a.channels[channelID]
	s := a.session
	a.mu.RUnlock()
	if ok || s == nil {
		return name
	}
	ch, err := s.Channel(channelID)
	if err != nil {
		a.logger.Debug("resolve channel name failed", slog.String("channel_id", channelID), slog.Any("error", err))
		return ""
	}
	a.mu.Lock()
	a.channels[channelID] = ch.Name
	a.mu.Unlock()
	return ch.Name
}

// toInbound normalizes a Discord message. Messages from bots or without text are skipped.
func toInbound(m *discordgo.Message, selfID, channelName string) (channel.InboundMessage, bool) {
	if m == nil || m.Author == nil || m.Author.Bot || (selfID != "" && m.Author.ID == selfID) {
		return channel.InboundMessage{}, false
	}
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return channel.InboundMessage{}, false
	}
	isDM := m.GuildID == ""
	msg := channel.InboundMessage{
		ID:        m.ID,
		ChatID:    m.ChannelID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Content:   text,
		Timestamp: m.Timestamp.UTC(),
		Transport: Type,
		IsDM:      isDM,
	}
	if !isDM {
		msg.ChannelName = channelName
		msg.MentionsBot = mentions(m, selfID)
	}
	return msg, true
}

func mentions(m *discordgo.Message, selfID string) bool {
	if selfID == "" {
		return false
	}
	for _, user := range m.Mentions {
		if user != nil && user.ID == selfID {
			return true
		}
	}
	return m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil && m.ReferencedMessage.Author.ID == selfID
}
