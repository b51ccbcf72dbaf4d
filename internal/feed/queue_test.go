package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/memohai/chatbridge/internal/channel"
)

func msg(id string) channel.InboundMessage {
	return channel.InboundMessage{ID: id, ChatID: "chat-" + id, Transport: "local"}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestQueueBuffersInOrder(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	q.Push(msg("1"))
	q.Push(msg("2"))
	q.Push(msg("3"))
	if q.Len() != 3 {
		t.Fatalf("expected 3 buffered, got %d", q.Len())
	}
	for _, want := range []string{"1", "2", "3"} {
		got, err := q.Wait(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != want {
			t.Fatalf("expected %s, got %s", want, got.ID)
		}
	}
}

func TestQueueHandsOffToWaiter(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	result := make(chan channel.InboundMessage, 1)
	go func() {
		m, err := q.Wait(context.Background())
		if err == nil {
			result <- m
		}
	}()
	waitUntil(t, q.Waiting)
	q.Push(msg("a"))

	select {
	case got := <-result:
		if got.ID != "a" {
			t.Fatalf("expected a, got %s", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter was not resolved")
	}
	if q.Waiting() || q.Len() != 0 {
		t.Fatalf("expected waiter cleared and buffer empty")
	}
}

func TestQueueCancelKeepsBuffered(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Wait(ctx)
		errCh <- err
	}()
	waitUntil(t, q.Waiting)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancel did not release waiter")
	}
	if q.Waiting() {
		t.Fatalf("expected waiter registration cleared")
	}

	q.Push(msg("later"))
	got, err := q.Wait(context.Background())
	if err != nil || got.ID != "later" {
		t.Fatalf("expected buffered message, got %v %v", got, err)
	}
}

func TestQueueCancelledContextDoesNotConsume(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	q.Push(msg("kept"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected message to stay queued")
	}
}

func TestQueueRejectsSecondWaiter(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _, _ = q.Wait(ctx) }()
	waitUntil(t, q.Waiting)

	if _, err := q.Wait(context.Background()); !errors.Is(err, ErrConsumerBusy) {
		t.Fatalf("expected ErrConsumerBusy, got %v", err)
	}
}

func TestQueueConcurrentPushPreservesEveryMessage(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(msg("x"))
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for received < producers*perProducer {
			if _, err := q.Wait(context.Background()); err != nil {
				return
			}
			received++
		}
	}()
	wg.Wait()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("received %d of %d", received, producers*perProducer)
	}
}
