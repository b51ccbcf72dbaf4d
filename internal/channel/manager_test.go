package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeAdapter struct {
	transport  Type
	connectErr error

	mu       sync.Mutex
	sent     []OutboundMessage
	typing   []string
	sendErrs []error
	handler  InboundHandler
	onError  ErrorHandler
	conns    []*BaseConnection
}

func (a *fakeAdapter) Type() Type { return a.transport }

func (a *fakeAdapter) Connect(_ context.Context, handler InboundHandler, onError ErrorHandler) (Connection, error) {
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = handler
	a.onError = onError
	conn := NewConnection(a.transport, func(context.Context) error { return nil })
	a.conns = append(a.conns, conn)
	return conn, nil
}

func (a *fakeAdapter) Send(_ context.Context, msg OutboundMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sendErrs) > 0 {
		err := a.sendErrs[0]
		a.sendErrs = a.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	a.sent = append(a.sent, msg)
	return nil
}

func (a *fakeAdapter) SendTyping(_ context.Context, chatID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.typing = append(a.typing, chatID)
	return nil
}

func (a *fakeAdapter) sentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}

type fakeProcessor struct {
	mu    sync.Mutex
	got   []InboundMessage
	reply string
	done  chan struct{}
}

func (p *fakeProcessor) HandleInbound(ctx context.Context, msg InboundMessage, sender ReplySender) error {
	p.mu.Lock()
	p.got = append(p.got, msg)
	p.mu.Unlock()
	defer func() {
		if p.done != nil {
			p.done <- struct{}{}
		}
	}()
	if p.reply == "" {
		return nil
	}
	return sender.Send(ctx, OutboundMessage{ChatID: msg.ChatID, Text: p.reply, ReplyToID: msg.ID})
}

func newTestManager(processor InboundProcessor, adapters ...Adapter) *Manager {
	registry := NewRegistry()
	for _, a := range adapters {
		registry.MustRegister(a)
	}
	m := NewManager(slog.Default(), registry, processor)
	m.retryBackoff = time.Millisecond
	return m
}

func TestManagerSend(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{transport: "telegram"}
	m := newTestManager(nil, adapter)

	if err := m.Send(context.Background(), "telegram", OutboundMessage{ChatID: " 42 ", Text: "hi"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if adapter.sentCount() != 1 || adapter.sent[0].ChatID != "42" {
		t.Fatalf("unexpected sent messages: %+v", adapter.sent)
	}
	if err := m.Send(context.Background(), "irc", OutboundMessage{ChatID: "1", Text: "hi"}); !errors.Is(err, ErrUnknownTransport) {
		t.Fatalf("expected unknown transport, got %v", err)
	}
	if err := m.Send(context.Background(), "telegram", OutboundMessage{ChatID: "1", Text: "  "}); err == nil {
		t.Fatal("expected empty message error")
	}
	if err := m.Send(context.Background(), "telegram", OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected missing chat id error")
	}
}

func TestManagerSendRetries(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{transport: "discord", sendErrs: []error{errors.New("boom"), nil}}
	m := newTestManager(nil, adapter)
	if err := m.Send(context.Background(), "discord", OutboundMessage{ChatID: "c", Text: "hi"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}

	failing := &fakeAdapter{transport: "slack", sendErrs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	m = newTestManager(nil, failing)
	if err := m.Send(context.Background(), "slack", OutboundMessage{ChatID: "c", Text: "hi"}); err == nil {
		t.Fatal("expected failure after retries")
	}
}

func TestManagerRoutesInboundAndReplies(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{transport: "telegram"}
	processor := &fakeProcessor{reply: "pong", done: make(chan struct{}, 1)}
	m := newTestManager(processor, adapter)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		adapter.mu.Lock()
		handler := adapter.handler
		adapter.mu.Unlock()
		if handler != nil {
			if err := handler(ctx, InboundMessage{ID: "m1", ChatID: "42", Transport: "telegram", Content: "ping"}); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("adapter never connected")
		case <-time.After(10 * time.Millisecond):
		}
	}

	select {
	case <-processor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor not invoked")
	}
	if adapter.sentCount() != 1 || adapter.sent[0].Text != "pong" || adapter.sent[0].ReplyToID != "m1" {
		t.Fatalf("unexpected reply: %+v", adapter.sent)
	}
	status := m.Status()
	if len(status) != 1 || !status[0].Connected {
		t.Fatalf("unexpected status: %+v", status)
	}
}

type orderProcessor struct {
	mu     sync.Mutex
	byChat map[string][]string
	wg     sync.WaitGroup
}

func (p *orderProcessor) HandleInbound(_ context.Context, msg InboundMessage, _ ReplySender) error {
	defer p.wg.Done()
	// Uneven work per message so a shared pool would reorder them.
	time.Sleep(time.Duration(len(msg.ID)%3) * time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byChat[msg.ChatID] = append(p.byChat[msg.ChatID], msg.ID)
	return nil
}

func TestManagerKeepsPerChatOrder(t *testing.T) {
	t.Parallel()

	processor := &orderProcessor{byChat: map[string][]string{}}
	m := newTestManager(processor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() { _ = m.Shutdown(context.Background()) }()

	const perChat = 30
	chats := []string{"42", "7"}
	want := map[string][]string{}
	processor.wg.Add(perChat * len(chats))
	for i := 0; i < perChat; i++ {
		for _, chat := range chats {
			id := fmt.Sprintf("%s-%s", chat, strings.Repeat("x", i))
			want[chat] = append(want[chat], id)
			if err := m.HandleInbound(ctx, InboundMessage{ID: id, ChatID: chat, Transport: "telegram", Content: "hi"}); err != nil {
				t.Fatalf("HandleInbound: %v", err)
			}
		}
	}

	done := make(chan struct{})
	go func() {
		processor.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("messages not processed")
	}

	processor.mu.Lock()
	defer processor.mu.Unlock()
	for _, chat := range chats {
		got := processor.byChat[chat]
		if len(got) != perChat {
			t.Fatalf("chat %s: expected %d messages, got %d", chat, perChat, len(got))
		}
		for i := range got {
			if got[i] != want[chat][i] {
				t.Fatalf("chat %s out of order at %d: got %s, want %s", chat, i, got[i], want[chat][i])
			}
		}
	}
}

func TestInboundQueueIsStablePerChat(t *testing.T) {
	t.Parallel()
	m := newTestManager(&fakeProcessor{})
	msg := InboundMessage{ChatID: "42", Transport: "telegram"}
	first := m.inboundQueue(msg)
	for i := 0; i < 10; i++ {
		if m.inboundQueue(msg) != first {
			t.Fatal("a chat must always map to the same worker queue")
		}
	}
	if len(m.inboundQueues) != 4 || cap(first) != 64 {
		t.Fatalf("unexpected queue layout: %d queues, cap %d", len(m.inboundQueues), cap(first))
	}
}

func TestManagerReconnectsDownConnectionAndIsolatesFailures(t *testing.T) {
	t.Parallel()

	good := &fakeAdapter{transport: "telegram"}
	bad := &fakeAdapter{transport: "discord", connectErr: errors.New("gateway unreachable")}
	m := newTestManager(&fakeProcessor{}, good, bad)
	ctx := context.Background()

	m.refresh(ctx)
	status := m.Status()
	if len(status) != 2 || status[0].Connected || !status[1].Connected {
		t.Fatalf("expected only telegram connected, got %+v", status)
	}

	good.conns[0].MarkDown()
	m.refresh(ctx)
	if len(good.conns) != 2 {
		t.Fatalf("expected reconnect, got %d connections", len(good.conns))
	}
	m.refresh(ctx)
	if len(good.conns) != 2 {
		t.Fatalf("expected running connection to be kept, got %d connections", len(good.conns))
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if m.Status()[1].Connected {
		t.Fatal("expected telegram disconnected after shutdown")
	}
}

func TestManagerRateLimit(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{transport: "slack"}
	m := newTestManager(nil, adapter)
	m.SetRateLimit("slack", 0.001, 1)

	if err := m.Send(context.Background(), "slack", OutboundMessage{ChatID: "c", Text: "first"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Send(ctx, "slack", OutboundMessage{ChatID: "c", Text: "second"}); err == nil {
		t.Fatal("expected rate limiter to reject within deadline")
	}
	m.SetRateLimit("slack", 0, 0)
	if err := m.Send(context.Background(), "slack", OutboundMessage{ChatID: "c", Text: "third"}); err != nil {
		t.Fatalf("expected unlimited send, got %v", err)
	}
}

func TestManagerHandleInboundWithoutProcessor(t *testing.T) {
	t.Parallel()

	m := newTestManager(nil)
	if err := m.HandleInbound(context.Background(), InboundMessage{}); err == nil {
		t.Fatal("expected error without processor")
	}
}
