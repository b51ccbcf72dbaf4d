package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memohai/chatbridge/internal/channel"
)

type tools struct {
	feed       Feed
	transports Transports
	logger     *slog.Logger
}

type WaitInput struct {
	Reply string `json:"reply,omitempty" jsonschema:"optional reply sent to the previously delivered message before waiting"`
}

// WaitOutput is the structured form of a delivered message.
type WaitOutput struct {
	ID          string `json:"id"`
	Transport   string `json:"transport"`
	ChatID      string `json:"chat_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Content     string `json:"content"`
	Timestamp   string `json:"timestamp"`
	IsDM        bool   `json:"is_dm"`
	ChannelName string `json:"channel_name"`
}

func waitOutput(msg channel.InboundMessage) WaitOutput {
	return WaitOutput{
		ID:          msg.ID,
		Transport:   msg.Transport.String(),
		ChatID:      msg.ChatID,
		UserID:      msg.UserID,
		Username:    msg.Username,
		Content:     msg.Content,
		Timestamp:   msg.Timestamp.UTC().Format(time.RFC3339),
		IsDM:        msg.IsDM,
		ChannelName: msg.ChannelName,
	}
}

type SendInput struct {
	Transport string `json:"transport" jsonschema:"transport name such as telegram, discord, slack or local"`
	ChatID    string `json:"chat_id" jsonschema:"chat to send to"`
	Text      string `json:"text" jsonschema:"message text"`
	ReplyTo   string `json:"reply_to,omitempty" jsonschema:"optional message id to thread the reply onto"`
}

type TypingInput struct {
	Transport string `json:"transport" jsonschema:"transport name"`
	ChatID    string `json:"chat_id" jsonschema:"chat to show the indicator in"`
}

type StatusOutput struct {
	Status string `json:"status"`
}

type ListInput struct{}

type ListOutput struct {
	Transports []channel.TransportStatus `json:"transports"`
}

// registerTools adds the bridge tools to server.
func registerTools(server *gomcp.Server, t *tools) {
	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "wait_for_message",
		Description: "Block until the next authorized chat message arrives. Pass reply to answer the previous message first.",
	}, t.waitForMessage)
	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "send_message",
		Description: "Send a text message to a chat on a transport.",
	}, t.sendMessage)
	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "send_typing",
		Description: "Show a typing indicator in a chat.",
	}, t.sendTyping)
	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "list_transports",
		Description: "List configured transports and whether each is connected.",
	}, t.listTransports)
}

func (t *tools) waitForMessage(ctx context.Context, _ *gomcp.CallToolRequest, in WaitInput) (*gomcp.CallToolResult, WaitOutput, error) {
	msg, err := t.feed.Next(ctx, in.Reply)
	if err != nil {
		t.logger.Warn("wait_for_message failed", slog.Any("error", err))
		return nil, WaitOutput{}, err
	}
	return textResult(formatMessage(msg)), waitOutput(msg), nil
}

func (t *tools) sendMessage(ctx context.Context, _ *gomcp.CallToolRequest, in SendInput) (*gomcp.CallToolResult, StatusOutput, error) {
	transport, err := channel.ParseType(in.Transport)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	if strings.TrimSpace(in.ChatID) == "" {
		return nil, StatusOutput{}, errors.New("chat_id is required")
	}
	err = t.transports.Send(ctx, transport, channel.OutboundMessage{
		ChatID:    in.ChatID,
		Text:      in.Text,
		ReplyToID: strings.TrimSpace(in.ReplyTo),
	})
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return textResult(fmt.Sprintf("sent to %s chat %s", transport, strings.TrimSpace(in.ChatID))), StatusOutput{Status: "sent"}, nil
}

func (t *tools) sendTyping(ctx context.Context, _ *gomcp.CallToolRequest, in TypingInput) (*gomcp.CallToolResult, StatusOutput, error) {
	transport, err := channel.ParseType(in.Transport)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	if err := t.transports.SendTyping(ctx, transport, in.ChatID); err != nil {
		return nil, StatusOutput{}, err
	}
	return textResult("typing"), StatusOutput{Status: "typing"}, nil
}

func (t *tools) listTransports(_ context.Context, _ *gomcp.CallToolRequest, _ ListInput) (*gomcp.CallToolResult, ListOutput, error) {
	items := t.transports.Status()
	if items == nil {
		items = []channel.TransportStatus{}
	}
	var b strings.Builder
	for _, item := range items {
		state := "disconnected"
		if item.Connected {
			state = "connected"
		}
		fmt.Fprintf(&b, "%s: %s\n", item.Transport, state)
	}
	if len(items) == 0 {
		b.WriteString("no transports configured\n")
	}
	return textResult(strings.TrimRight(b.String(), "\n")), ListOutput{Transports: items}, nil
}
