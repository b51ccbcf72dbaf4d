// Package slack implements the Slack transport over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/channel/adapters/adapterutil"
)

// Type is the registered transport identifier for Slack.
const Type channel.Type = "slack"

// webAPI is the subset of *slack.Client the adapter uses.
type webAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Config holds the Slack bot and app-level tokens. Socket Mode needs both.
type Config struct {
	BotToken string
	AppToken string
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return errors.New("slack botToken is required")
	}
	if strings.TrimSpace(c.AppToken) == "" {
		return errors.New("slack appToken is required")
	}
	return nil
}

type SlackAdapter struct {
	logger *slog.Logger
	cfg    Config

	mu       sync.RWMutex
	api      webAPI
	botID    string
	channels map[string]string
	users    map[string]string
}

func NewSlackAdapter(log *slog.Logger, cfg Config) *SlackAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &SlackAdapter{
		logger:   log.With(slog.String("adapter", "slack")),
		cfg:      cfg,
		channels: map[string]string{},
		users:    map[string]string{},
	}
}

func (a *SlackAdapter) Type() channel.Type {
	return Type
}

func (a *SlackAdapter) Connect(ctx context.Context, handler channel.InboundHandler, onError channel.ErrorHandler) (channel.Connection, error) {
	if err := a.cfg.validate(); err != nil {
		return nil, err
	}
	api := slack.New(strings.TrimSpace(a.cfg.BotToken), slack.OptionAppLevelToken(strings.TrimSpace(a.cfg.AppToken)))
	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		a.logger.Error("auth test failed", slog.Any("error", err))
		return nil, fmt.Errorf("slack connect: %w", err)
	}
	a.mu.Lock()
	a.api = api
	a.botID = auth.UserID
	a.mu.Unlock()
	a.logger.Info("start", slog.String("bot", auth.User), slog.String("team", auth.Team))

	client := socketmode.New(api)
	connCtx, cancel := context.WithCancel(ctx)
	conn := channel.NewConnection(Type, func(context.Context) error {
		a.logger.Info("stop")
		cancel()
		return nil
	})

	go func() {
		err := client.RunContext(connCtx)
		if connCtx.Err() != nil {
			return
		}
		conn.MarkDown()
		if err == nil {
			err = errors.New("slack socket mode stopped")
		}
		if onError != nil {
			onError(Type, err)
		}
	}()
	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				a.handleEvent(connCtx, evt, func(req socketmode.Request) { client.Ack(req) }, handler, onError)
			}
		}
	}()
	return conn, nil
}

func (a *SlackAdapter) handleEvent(ctx context.Context, evt socketmode.Event, ack func(socketmode.Request), handler channel.InboundHandler, onError channel.ErrorHandler) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		a.logger.Info("socket connected")
	case socketmode.EventTypeConnectionError, socketmode.EventTypeInvalidAuth:
		if onError != nil {
			onError(Type, fmt.Errorf("slack %s", evt.Type))
		}
	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			ack(*evt.Request)
		}
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || apiEvent.Type != slackevents.CallbackEvent {
			return
		}
		ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
		if !ok {
			return
		}
		msg, ok := a.toInbound(ctx, ev)
		if !ok {
			return
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
}

// toInbound normalizes a Slack message event. Bot posts, edits and other
// subtypes are skipped.
func (a *SlackAdapter) toInbound(ctx context.Context, ev *slackevents.MessageEvent) (channel.InboundMessage, bool) {
	if ev == nil || ev.BotID != "" || ev.SubType != "" || ev.User == "" {
		return channel.InboundMessage{}, false
	}
	botID := a.self()
	if ev.User == botID {
		return channel.InboundMessage{}, false
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return channel.InboundMessage{}, false
	}
	isDM := ev.ChannelType == "im"
	msg := channel.InboundMessage{
		ID:        ev.TimeStamp,
		ChatID:    ev.Channel,
		UserID:    ev.User,
		Username:  a.userName(ctx, ev.User),
		Content:   text,
		Timestamp: parseTimestamp(ev.TimeStamp),
		Transport: Type,
		IsDM:      isDM,
	}
	if !isDM {
		msg.ChannelName = a.channelName(ctx, ev.Channel)
		msg.MentionsBot = botID != "" && strings.Contains(text, "<@"+botID+">")
	}
	return msg, true
}

func (a *SlackAdapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	api, err := a.client()
	if err != nil {
		return err
	}
	if msg.IsEmpty() {
		return fmt.Errorf("message is required")
	}
	chatID := strings.TrimSpace(msg.ChatID)
	if chatID == "" {
		return fmt.Errorf("slack channel id is required")
	}
	for _, chunk := range channel.ChunkText(strings.TrimSpace(msg.Text), channel.SlackTextLimit) {
		opts := []slack.MsgOption{slack.MsgOptionText(chunk, false)}
		if ts := strings.TrimSpace(msg.ReplyToID); ts != "" {
			opts = append(opts, slack.MsgOptionTS(ts))
		}
		if _, _, err := api.PostMessageContext(ctx, chatID, opts...); err != nil {
			a.logger.Error("send failed", slog.String("chat_id", chatID), slog.Any("error", err))
			return err
		}
	}
	return nil
}

// SendTyping is a no-op: Slack offers bots no typing indicator outside the RTM API.
func (a *SlackAdapter) SendTyping(ctx context.Context, chatID string) error {
	_, err := a.client()
	return err
}

func (a *SlackAdapter) client() (webAPI, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.api == nil {
		return nil, errors.New("slack not connected")
	}
	return a.api, nil
}

func (a *SlackAdapter) self() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.botID
}

func (a *SlackAdapter) userName(ctx context.Context, userID string) string {
	a.mu.RLock()
	name, ok := a.users[userID]
	api := a.api
	a.mu.RUnlock()
	if ok || api == nil {
		return name
	}
	user, err := api.GetUserInfoContext(ctx, userID)
	if err != nil {
		a.logger.Debug("resolve user failed", slog.String("user_id", userID), slog.Any("error", err))
		return ""
	}
	a.mu.Lock()
	a.users[userID] = user.Name
	a.mu.Unlock()
	return user.Name
}

func (a *SlackAdapter) channelName(ctx context.Context, channelID string) string {
	a.mu.RLock()
	name, ok := a.channels[channelID]
	api := a.api
	a.mu.RUnlock()
	if ok || api == nil {
		return name
	}
	ch, err := api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		a.logger.Debug("resolve channel failed", slog.String("channel_id", channelID), slog.Any("error", err))
		return ""
	}
	a.mu.Lock()
	a.channels[channelID] = ch.Name
	a.mu.Unlock()
	return ch.Name
}

// parseTimestamp reads Slack's "seconds.micros" message timestamps.
func parseTimestamp(ts string) time.Time {
	secs, frac, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var nsec int64
	if frac != "" {
		for len(frac) < 9 {
			frac += "0"
		}
		nsec, _ = strconv.ParseInt(frac[:9], 10, 64)
	}
	return time.Unix(sec, nsec).UTC()
}
