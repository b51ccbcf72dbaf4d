// Package mcp exposes the message feed and outbound transports as MCP tools
// for an agent connected over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/version"
)

// Feed is the consumer side of the message feed.
type Feed interface {
	Next(ctx context.Context, reply string) (channel.InboundMessage, error)
}

// Transports sends over named transports and reports their status.
type Transports interface {
	Send(ctx context.Context, transport channel.Type, msg channel.OutboundMessage) error
	SendTyping(ctx context.Context, transport channel.Type, chatID string) error
	Status() []channel.TransportStatus
}

// NewServer builds an MCP server with the chat bridge tools registered.
func NewServer(log *slog.Logger, feed Feed, transports Transports) *gomcp.Server {
	if log == nil {
		log = slog.Default()
	}
	server := gomcp.NewServer(
		&gomcp.Implementation{Name: "chatbridge", Version: version.GetInfo()},
		nil,
	)
	registerTools(server, &tools{
		feed:       feed,
		transports: transports,
		logger:     log.With(slog.String("component", "mcp")),
	})
	return server
}

// Run serves MCP over stdio until ctx is done or the client disconnects.
func Run(ctx context.Context, server *gomcp.Server) error {
	return server.Run(ctx, &gomcp.StdioTransport{})
}

// formatMessage renders an inbound message as the text block agents read.
func formatMessage(msg channel.InboundMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", msg.Transport, msg.DisplayName())
	if msg.IsDM {
		b.WriteString(" (direct message)")
	} else if msg.ChannelName != "" {
		fmt.Fprintf(&b, " in #%s", msg.ChannelName)
	}
	fmt.Fprintf(&b, "\nchat_id: %s\nmessage_id: %s\n\n%s", msg.ChatID, msg.ID, msg.Content)
	return b.String()
}

func textResult(text string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: text}},
	}
}
