package local

import (
	"context"
	"errors"
	"testing"

	"github.com/memohai/chatbridge/internal/channel"
)

func TestRouteHubSubscribePublish(t *testing.T) {
	t.Parallel()
	hub := NewRouteHub()
	id1, ch1, cancel1 := hub.Subscribe("room")
	id2, ch2, cancel2 := hub.Subscribe("room")
	_, other, cancelOther := hub.Subscribe("elsewhere")
	defer cancelOther()
	if id1 == id2 {
		t.Fatalf("stream ids must differ")
	}
	if n := hub.Publish(RouteHubEvent{Kind: EventMessage, ChatID: "room"}); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	for _, ch := range []<-chan RouteHubEvent{ch1, ch2} {
		ev := <-ch
		if ev.ChatID != "room" || ev.At.IsZero() {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
	select {
	case ev := <-other:
		t.Fatalf("unexpected cross-chat event: %+v", ev)
	default:
	}

	cancel1()
	cancel1()
	if _, ok := <-ch1; ok {
		t.Fatalf("cancelled stream should be closed")
	}
	if hub.Subscribers("room") != 1 {
		t.Fatalf("expected one subscriber left")
	}
	cancel2()
	if hub.Subscribers("room") != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestRouteHubDropsSlowReceivers(t *testing.T) {
	t.Parallel()
	hub := NewRouteHub()
	_, _, cancel := hub.Subscribe("room")
	defer cancel()
	delivered := 0
	for i := 0; i < 40; i++ {
		delivered += hub.Publish(RouteHubEvent{ChatID: "room"})
	}
	if delivered != 32 {
		t.Fatalf("expected buffer-sized delivery, got %d", delivered)
	}
}

func TestInjectRequiresConnection(t *testing.T) {
	t.Parallel()
	a := NewLocalAdapter(nil, nil)
	if _, err := a.Inject(context.Background(), InjectRequest{ChatID: "c", UserID: "u", Text: "hi"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestInjectAndReply(t *testing.T) {
	t.Parallel()
	a := NewLocalAdapter(nil, nil)
	var got []channel.InboundMessage
	conn, err := a.Connect(context.Background(), func(_ context.Context, msg channel.InboundMessage) error {
		got = append(got, msg)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	msg, err := a.Inject(context.Background(), InjectRequest{ChatID: "dm-1", UserID: "u1", Username: "alice", Text: " hi ", IsDM: true, MentionsBot: true})
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	if msg.ID == "" || msg.Content != "hi" || msg.Transport != Type || !msg.IsDM || msg.MentionsBot {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if len(got) != 1 || got[0].ID != msg.ID {
		t.Fatalf("handler not called: %+v", got)
	}
	group, err := a.Inject(context.Background(), InjectRequest{ChatID: "g", UserID: "u1", Text: "yo", MentionsBot: true, ChannelName: "general"})
	if err != nil || !group.MentionsBot || group.ChannelName != "general" {
		t.Fatalf("unexpected group message: %+v %v", group, err)
	}
	for _, bad := range []InjectRequest{{UserID: "u", Text: "x"}, {ChatID: "c", Text: "x"}, {ChatID: "c", UserID: "u", Text: " "}} {
		if _, err := a.Inject(context.Background(), bad); err == nil {
			t.Fatalf("expected validation error for %+v", bad)
		}
	}

	_, stream, cancel := a.Hub().Subscribe("dm-1")
	defer cancel()
	if err := a.SendTyping(context.Background(), "dm-1"); err != nil {
		t.Fatalf("typing: %v", err)
	}
	if err := a.Send(context.Background(), channel.OutboundMessage{ChatID: "dm-1", Text: "hello", ReplyToID: msg.ID}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if ev := <-stream; ev.Kind != EventTyping {
		t.Fatalf("expected typing first, got %+v", ev)
	}
	if ev := <-stream; ev.Kind != EventMessage || ev.Message.Text != "hello" || ev.Message.ReplyToID != msg.ID {
		t.Fatalf("unexpected reply event: %+v", ev)
	}
	if err := a.Send(context.Background(), channel.OutboundMessage{ChatID: "dm-1"}); err == nil {
		t.Fatalf("expected empty message error")
	}

	if err := conn.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := a.Inject(context.Background(), InjectRequest{ChatID: "c", UserID: "u", Text: "x"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after stop, got %v", err)
	}
}
