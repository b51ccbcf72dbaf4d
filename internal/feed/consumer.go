package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/memohai/chatbridge/internal/channel"
)

// ErrNoPreviousMessage is returned by Reply before any message was delivered.
var ErrNoPreviousMessage = errors.New("no previous message to reply to")

// Sender sends over a named transport.
type Sender interface {
	Send(ctx context.Context, transport channel.Type, msg channel.OutboundMessage) error
	SendTyping(ctx context.Context, transport channel.Type, chatID string) error
}

// Consumer drives the request/response loop of the external agent: each call
// to Next may answer the previously delivered message before taking the next.
type Consumer struct {
	queue  *Queue
	sender Sender
	logger *slog.Logger

	mu   sync.Mutex
	last *channel.InboundMessage
}

// NewConsumer wraps queue; sender may be nil when replies are not wanted.
func NewConsumer(log *slog.Logger, queue *Queue, sender Sender) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		queue:  queue,
		sender: sender,
		logger: log.With(slog.String("component", "feed")),
	}
}

// Next sends reply (when non-empty) to the previous message, then blocks for
// the next one and shows a typing indicator in its chat.
func (c *Consumer) Next(ctx context.Context, reply string) (channel.InboundMessage, error) {
	if strings.TrimSpace(reply) != "" {
		if err := c.Reply(ctx, reply); err != nil {
			return channel.InboundMessage{}, err
		}
	}
	msg, err := c.queue.Wait(ctx)
	if err != nil {
		return channel.InboundMessage{}, err
	}
	c.mu.Lock()
	c.last = &msg
	c.mu.Unlock()

	if c.sender != nil {
		if err := c.sender.SendTyping(ctx, msg.Transport, msg.ChatID); err != nil {
			c.logger.Debug("typing indicator failed",
				slog.String("transport", msg.Transport.String()),
				slog.Any("error", err),
			)
		}
	}
	return msg, nil
}

// Reply answers the most recently delivered message, threaded onto it.
func (c *Consumer) Reply(ctx context.Context, text string) error {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last == nil {
		return ErrNoPreviousMessage
	}
	if c.sender == nil {
		return errors.New("feed sender not configured")
	}
	err := c.sender.Send(ctx, last.Transport, channel.OutboundMessage{
		ChatID:    last.ChatID,
		Text:      text,
		ReplyToID: last.ID,
	})
	if err != nil {
		return fmt.Errorf("reply to %s message %s: %w", last.Transport, last.ID, err)
	}
	return nil
}

// Last returns the most recently delivered message.
func (c *Consumer) Last() (channel.InboundMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return channel.InboundMessage{}, false
	}
	return *c.last, true
}

// Pending returns the number of buffered messages.
func (c *Consumer) Pending() int {
	return c.queue.Len()
}
