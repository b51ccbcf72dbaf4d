// Package channel defines the transport adapter contract and the manager that
// runs adapters concurrently and funnels their messages into one processor.
package channel

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrStopNotSupported = errors.New("channel connection stop not supported")
	ErrUnknownTransport = errors.New("unknown transport")
)

// InboundHandler receives normalized messages from a live connection.
type InboundHandler func(ctx context.Context, msg InboundMessage) error

// ErrorHandler receives asynchronous transport failures from a live connection.
type ErrorHandler func(transport Type, err error)

// Adapter speaks to one chat network.
type Adapter interface {
	Type() Type
	Connect(ctx context.Context, handler InboundHandler, onError ErrorHandler) (Connection, error)
	Send(ctx context.Context, msg OutboundMessage) error
	SendTyping(ctx context.Context, chatID string) error
}

// Connection is a live session of one adapter.
type Connection interface {
	Transport() Type
	Stop(ctx context.Context) error
	Running() bool
}

type BaseConnection struct {
	transport Type
	stop      func(ctx context.Context) error
	running   atomic.Bool
}

func NewConnection(transport Type, stop func(ctx context.Context) error) *BaseConnection {
	conn := &BaseConnection{
		transport: transport,
		stop:      stop,
	}
	conn.running.Store(true)
	return conn
}

func (c *BaseConnection) Transport() Type {
	return c.transport
}

func (c *BaseConnection) Stop(ctx context.Context) error {
	if c.stop == nil {
		return ErrStopNotSupported
	}
	err := c.stop(ctx)
	if err == nil {
		c.running.Store(false)
	}
	return err
}

// MarkDown flags the connection as disconnected without stopping it, so the
// manager reconnects it on the next refresh.
func (c *BaseConnection) MarkDown() {
	c.running.Store(false)
}

func (c *BaseConnection) Running() bool {
	return c.running.Load()
}
