package channel

import "context"

// ReplySender sends replies back over the transport a message arrived on.
type ReplySender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// InboundProcessor handles inbound messages and replies through the given sender.
type InboundProcessor interface {
	HandleInbound(ctx context.Context, msg InboundMessage, sender ReplySender) error
}
