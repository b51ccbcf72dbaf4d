// Package feed delivers routed messages to the single external consumer.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/memohai/chatbridge/internal/channel"
)

// ErrConsumerBusy is returned by Wait when another caller is already waiting.
var ErrConsumerBusy = errors.New("feed already has a waiting consumer")

// Queue is a single-consumer rendezvous. A pushed message resolves the
// registered waiter directly; with no waiter it is buffered in FIFO order.
type Queue struct {
	mu     sync.Mutex
	items  []channel.InboundMessage
	waiter chan channel.InboundMessage
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push delivers msg to the waiting consumer or appends it to the buffer. It never blocks.
func (q *Queue) Push(msg channel.InboundMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waiter != nil {
		// The slot is buffered with capacity one and used once.
		q.waiter <- msg
		q.waiter = nil
		return
	}
	q.items = append(q.items, msg)
}

// Wait returns the oldest buffered message or blocks until one is pushed.
// Cancelling ctx clears the registration and leaves buffered messages intact.
func (q *Queue) Wait(ctx context.Context) (channel.InboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return channel.InboundMessage{}, err
	}
	q.mu.Lock()
	if len(q.items) > 0 {
		msg := q.popLocked()
		q.mu.Unlock()
		return msg, nil
	}
	if q.waiter != nil {
		q.mu.Unlock()
		return channel.InboundMessage{}, ErrConsumerBusy
	}
	slot := make(chan channel.InboundMessage, 1)
	q.waiter = slot
	q.mu.Unlock()

	select {
	case msg := <-slot:
		return msg, nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waiter == slot {
		q.waiter = nil
		return channel.InboundMessage{}, ctx.Err()
	}
	// A push won the race with cancellation; keep its message first in line.
	msg := <-slot
	q.items = append([]channel.InboundMessage{msg}, q.items...)
	return channel.InboundMessage{}, ctx.Err()
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Waiting reports whether a consumer is currently blocked in Wait.
func (q *Queue) Waiting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiter != nil
}

func (q *Queue) popLocked() channel.InboundMessage {
	msg := q.items[0]
	q.items[0] = channel.InboundMessage{}
	q.items = q.items[1:]
	return msg
}
