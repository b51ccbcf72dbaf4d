package mcp

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/feed"
)

type fakeTransports struct {
	sent   []channel.OutboundMessage
	typing []string
}

func (f *fakeTransports) Send(_ context.Context, transport channel.Type, msg channel.OutboundMessage) error {
	if transport != "telegram" {
		return channel.ErrUnknownTransport
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransports) SendTyping(_ context.Context, _ channel.Type, chatID string) error {
	f.typing = append(f.typing, chatID)
	return nil
}

func (f *fakeTransports) Status() []channel.TransportStatus {
	return []channel.TransportStatus{{Transport: "telegram", Connected: true}, {Transport: "slack"}}
}

func connect(t *testing.T, f Feed, transports Transports) *gomcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := NewServer(slog.Default(), f, transports)
	clientTransport, serverTransport := gomcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func call(t *testing.T, session *gomcp.ClientSession, name string, args map[string]any) (*gomcp.CallToolResult, string) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &gomcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	var text strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	return res, text.String()
}

func TestListTools(t *testing.T) {
	t.Parallel()
	session := connect(t, feed.NewConsumer(nil, feed.NewQueue(), nil), &fakeTransports{})
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"wait_for_message", "send_message", "send_typing", "list_transports"} {
		if !names[want] {
			t.Fatalf("missing tool %s in %v", want, names)
		}
	}
}

func TestWaitForMessageAndReply(t *testing.T) {
	t.Parallel()
	transports := &fakeTransports{}
	queue := feed.NewQueue()
	session := connect(t, feed.NewConsumer(nil, queue, transports), transports)

	queue.Push(channel.InboundMessage{
		ID: "m1", ChatID: "42", UserID: "u1", Username: "alice", Content: "hello",
		Transport: "telegram", IsDM: true, Timestamp: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	})
	res, text := call(t, session, "wait_for_message", map[string]any{})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", text)
	}
	if !strings.Contains(text, "[telegram] alice (direct message)") || !strings.Contains(text, "hello") {
		t.Fatalf("unexpected text: %q", text)
	}
	if len(transports.typing) != 1 || transports.typing[0] != "42" {
		t.Fatalf("typing not sent: %v", transports.typing)
	}

	queue.Push(channel.InboundMessage{ID: "m2", ChatID: "43", UserID: "u2", Content: "next", Transport: "telegram", ChannelName: "general"})
	_, text = call(t, session, "wait_for_message", map[string]any{"reply": "hi alice"})
	if len(transports.sent) != 1 || transports.sent[0].ReplyToID != "m1" || transports.sent[0].ChatID != "42" {
		t.Fatalf("reply not threaded: %+v", transports.sent)
	}
	if !strings.Contains(text, "in #general") {
		t.Fatalf("unexpected text: %q", text)
	}
}

type failingFeed struct{}

func (failingFeed) Next(context.Context, string) (channel.InboundMessage, error) {
	return channel.InboundMessage{}, feed.ErrConsumerBusy
}

func TestWaitForMessageBusy(t *testing.T) {
	t.Parallel()
	session := connect(t, failingFeed{}, &fakeTransports{})
	res, text := call(t, session, "wait_for_message", map[string]any{})
	if !res.IsError || !strings.Contains(text, feed.ErrConsumerBusy.Error()) {
		t.Fatalf("expected busy tool error, got %v %q", res.IsError, text)
	}
}

func TestSendMessageAndTyping(t *testing.T) {
	t.Parallel()
	transports := &fakeTransports{}
	session := connect(t, failingFeed{}, transports)

	res, _ := call(t, session, "send_message", map[string]any{"transport": "telegram", "chat_id": "7", "text": "yo", "reply_to": "3"})
	if res.IsError || len(transports.sent) != 1 || transports.sent[0].ReplyToID != "3" {
		t.Fatalf("send failed: %+v", transports.sent)
	}
	res, text := call(t, session, "send_message", map[string]any{"transport": "irc", "chat_id": "7", "text": "yo"})
	if !res.IsError || !strings.Contains(text, channel.ErrUnknownTransport.Error()) {
		t.Fatalf("expected unknown transport error, got %q", text)
	}
	res, _ = call(t, session, "send_typing", map[string]any{"transport": "telegram", "chat_id": "7"})
	if res.IsError || len(transports.typing) != 1 {
		t.Fatalf("typing failed: %v", transports.typing)
	}
}

func TestListTransports(t *testing.T) {
	t.Parallel()
	session := connect(t, failingFeed{}, &fakeTransports{})
	_, text := call(t, session, "list_transports", map[string]any{})
	if text != "telegram: connected\nslack: disconnected" {
		t.Fatalf("unexpected listing: %q", text)
	}
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()
	got := formatMessage(channel.InboundMessage{ID: "1", ChatID: "c", UserID: "u9", Content: "x", Transport: "slack"})
	if !strings.HasPrefix(got, "[slack] u9\nchat_id: c") {
		t.Fatalf("unexpected format: %q", got)
	}
}
