package discord

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/memohai/chatbridge/internal/channel"
)

type fakeSession struct {
	mu       sync.Mutex
	handlers []interface{}
	sent     []*discordgo.MessageSend
	typing   []string
	openErr  error
	closed   bool
}

func (s *fakeSession) Open() error  { return s.openErr }
func (s *fakeSession) Close() error { s.closed = true; return nil }

func (s *fakeSession) AddHandler(handler interface{}) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
	return func() {}
}

func (s *fakeSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: channelID, Name: "general"}, nil
}

func (s *fakeSession) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, data)
	return &discordgo.Message{}, nil
}

func (s *fakeSession) ChannelTyping(channelID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = append(s.typing, channelID)
	return nil
}

func (s *fakeSession) fire(event interface{}) {
	s.mu.Lock()
	handlers := append([]interface{}(nil), s.handlers...)
	s.mu.Unlock()
	for _, h := range handlers {
		switch fn := h.(type) {
		case func(*discordgo.Session, *discordgo.Ready):
			if ev, ok := event.(*discordgo.Ready); ok {
				fn(nil, ev)
			}
		case func(*discordgo.Session, *discordgo.MessageCreate):
			if ev, ok := event.(*discordgo.MessageCreate); ok {
				fn(nil, ev)
			}
		case func(*discordgo.Session, *discordgo.Disconnect):
			if ev, ok := event.(*discordgo.Disconnect); ok {
				fn(nil, ev)
			}
		}
	}
}

func TestToInbound(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	dm := &discordgo.Message{ID: "1", ChannelID: "dm", Content: "hi", Timestamp: ts, Author: &discordgo.User{ID: "u1", Username: "alice"}}
	msg, ok := toInbound(dm, "bot", "")
	if !ok || !msg.IsDM || msg.UserID != "u1" || msg.Username != "alice" || msg.Transport != Type || !msg.Timestamp.Equal(ts) {
		t.Fatalf("unexpected DM: %+v", msg)
	}

	guild := &discordgo.Message{
		ID: "2", ChannelID: "c1", GuildID: "g1", Content: "<@bot> hello",
		Author:   &discordgo.User{ID: "u2"},
		Mentions: []*discordgo.User{{ID: "bot"}},
	}
	msg, ok = toInbound(guild, "bot", "general")
	if !ok || msg.IsDM || !msg.MentionsBot || msg.ChannelName != "general" {
		t.Fatalf("unexpected guild message: %+v", msg)
	}

	if _, ok := toInbound(&discordgo.Message{Content: "x", Author: &discordgo.User{ID: "bot"}}, "bot", ""); ok {
		t.Fatalf("own messages must be skipped")
	}
	if _, ok := toInbound(&discordgo.Message{Content: "x", Author: &discordgo.User{ID: "b", Bot: true}}, "bot", ""); ok {
		t.Fatalf("bot messages must be skipped")
	}
	if _, ok := toInbound(&discordgo.Message{Content: "  ", Author: &discordgo.User{ID: "u"}}, "bot", ""); ok {
		t.Fatalf("empty messages must be skipped")
	}
}

func TestConnectRoutesMessagesAndSends(t *testing.T) {
	t.Parallel()
	fake := &fakeSession{}
	a := NewDiscordAdapter(nil, Config{BotToken: "Bot token"})
	a.newSession = func(token string) (session, error) {
		if token != "token" {
			t.Errorf("expected normalized token, got %q", token)
		}
		return fake, nil
	}

	received := make(chan channel.InboundMessage, 1)
	errs := make(chan error, 1)
	conn, err := a.Connect(context.Background(), func(_ context.Context, msg channel.InboundMessage) error {
		received <- msg
		return nil
	}, func(_ channel.Type, err error) { errs <- err })
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	fake.fire(&discordgo.Ready{User: &discordgo.User{ID: "bot", Username: "bridge"}})
	fake.fire(&discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m1", ChannelID: "c1", GuildID: "g1", Content: "hey",
		Author:   &discordgo.User{ID: "u1"},
		Mentions: []*discordgo.User{{ID: "bot"}},
	}})
	select {
	case msg := <-received:
		if msg.ChannelName != "general" || !msg.MentionsBot {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("message not delivered")
	}

	fake.fire(&discordgo.Disconnect{})
	if err := <-errs; err == nil {
		t.Fatalf("expected disconnect error")
	}

	if err := a.Send(context.Background(), channel.OutboundMessage{ChatID: "c1", Text: "reply", ReplyToID: "m1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(fake.sent) != 1 || fake.sent[0].Reference == nil || fake.sent[0].Reference.MessageID != "m1" {
		t.Fatalf("unexpected sends: %+v", fake.sent)
	}
	if err := a.SendTyping(context.Background(), "c1"); err != nil || len(fake.typing) != 1 {
		t.Fatalf("typing failed: %v", err)
	}

	if err := conn.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !fake.closed {
		t.Fatalf("expected session closed")
	}
	if err := a.Send(context.Background(), channel.OutboundMessage{ChatID: "c1", Text: "x"}); err == nil {
		t.Fatalf("expected not connected error")
	}
}

func TestConnectOpenFailure(t *testing.T) {
	t.Parallel()
	a := NewDiscordAdapter(nil, Config{BotToken: "token"})
	a.newSession = func(string) (session, error) { return &fakeSession{openErr: errors.New("401")}, nil }
	if _, err := a.Connect(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected open error")
	}
	if _, err := NewDiscordAdapter(nil, Config{}).Connect(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected missing token error")
	}
}
