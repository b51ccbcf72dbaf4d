package slack

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/memohai/chatbridge/internal/channel"
)

type fakeAPI struct {
	mu     sync.Mutex
	posts  []string
	lookup int
}

func (f *fakeAPI) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "UBOT"}, nil
}

func (f *fakeAPI) GetConversationInfoContext(_ context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookup++
	ch := &slack.Channel{}
	ch.ID = input.ChannelID
	ch.Name = "general"
	return ch, nil
}

func (f *fakeAPI) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	if user == "UGHOST" {
		return nil, errors.New("user_not_found")
	}
	return &slack.User{ID: user, Name: "alice"}, nil
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, channelID)
	return channelID, "1.0", nil
}

func connected(api *fakeAPI) *SlackAdapter {
	a := NewSlackAdapter(nil, Config{BotToken: "xoxb", AppToken: "xapp"})
	a.api = api
	a.botID = "UBOT"
	return a
}

func TestToInbound(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	a := connected(api)
	ctx := context.Background()

	msg, ok := a.toInbound(ctx, &slackevents.MessageEvent{
		User: "U1", Text: "hello", Channel: "D1", ChannelType: "im", TimeStamp: "1700000000.000100",
	})
	if !ok || !msg.IsDM || msg.Username != "alice" || msg.ID != "1700000000.000100" {
		t.Fatalf("unexpected DM: %+v", msg)
	}
	if !msg.Timestamp.Equal(time.Unix(1700000000, 100000)) {
		t.Fatalf("unexpected timestamp: %v", msg.Timestamp)
	}

	msg, ok = a.toInbound(ctx, &slackevents.MessageEvent{
		User: "U2", Text: "<@UBOT> ping", Channel: "C1", ChannelType: "channel", TimeStamp: "1.0",
	})
	if !ok || msg.IsDM || !msg.MentionsBot || msg.ChannelName != "general" {
		t.Fatalf("unexpected channel message: %+v", msg)
	}
	_, _ = a.toInbound(ctx, &slackevents.MessageEvent{User: "U3", Text: "again", Channel: "C1", ChannelType: "channel"})
	if api.lookup != 1 {
		t.Fatalf("channel name should be cached, looked up %d times", api.lookup)
	}

	for _, ev := range []*slackevents.MessageEvent{
		{User: "U1", Text: "x", BotID: "B1"},
		{User: "U1", Text: "x", SubType: "message_changed"},
		{User: "UBOT", Text: "x"},
		{User: "U1", Text: "  "},
		nil,
	} {
		if _, ok := a.toInbound(ctx, ev); ok {
			t.Fatalf("expected %+v to be skipped", ev)
		}
	}

	msg, ok = a.toInbound(ctx, &slackevents.MessageEvent{User: "UGHOST", Text: "boo", Channel: "D2", ChannelType: "im"})
	if !ok || msg.Username != "" || msg.DisplayName() != "UGHOST" {
		t.Fatalf("unknown users fall back to their ID: %+v", msg)
	}
}

func TestHandleEventAcksAndDelivers(t *testing.T) {
	t.Parallel()
	a := connected(&fakeAPI{})
	var acked int
	var got []channel.InboundMessage
	var errs []error
	handler := func(_ context.Context, msg channel.InboundMessage) error {
		got = append(got, msg)
		return nil
	}
	onError := func(_ channel.Type, err error) { errs = append(errs, err) }
	ack := func(socketmode.Request) { acked++ }

	a.handleEvent(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeEventsAPI,
		Request: &socketmode.Request{EnvelopeID: "env"},
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Data: &slackevents.MessageEvent{User: "U1", Text: "hi", Channel: "D1", ChannelType: "im"},
			},
		},
	}, ack, handler, onError)
	a.handleEvent(context.Background(), socketmode.Event{Type: socketmode.EventTypeConnectionError}, ack, handler, onError)

	if acked != 1 || len(got) != 1 || got[0].Transport != Type {
		t.Fatalf("unexpected result: acked=%d got=%+v", acked, got)
	}
	if len(errs) != 1 {
		t.Fatalf("expected connection error reported, got %v", errs)
	}
}

func TestSend(t *testing.T) {
	t.Parallel()
	if err := NewSlackAdapter(nil, Config{}).Send(context.Background(), channel.OutboundMessage{ChatID: "C", Text: "x"}); err == nil {
		t.Fatalf("expected not connected error")
	}
	api := &fakeAPI{}
	a := connected(api)
	if err := a.Send(context.Background(), channel.OutboundMessage{ChatID: "C1", Text: "hello", ReplyToID: "1.0"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.posts) != 1 || api.posts[0] != "C1" {
		t.Fatalf("unexpected posts: %v", api.posts)
	}
	if err := a.SendTyping(context.Background(), "C1"); err != nil {
		t.Fatalf("typing: %v", err)
	}
	if err := a.Send(context.Background(), channel.OutboundMessage{ChatID: "C1", Text: " "}); err == nil {
		t.Fatalf("expected empty message error")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	if err := (Config{BotToken: "xoxb"}).validate(); err == nil {
		t.Fatalf("expected app token error")
	}
	if err := (Config{BotToken: "xoxb", AppToken: "xapp"}).validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
