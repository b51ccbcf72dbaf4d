package channel

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies a chat network (e.g. "telegram").
type Type string

func (t Type) String() string {
	return string(t)
}

// ParseType normalizes raw into a Type.
func ParseType(raw string) (Type, error) {
	normalized := normalizeType(raw)
	if normalized == "" {
		return "", fmt.Errorf("unsupported channel type: %q", raw)
	}
	return normalized, nil
}

func normalizeType(raw string) Type {
	return Type(strings.ToLower(strings.TrimSpace(raw)))
}

// InboundMessage is the canonical record an adapter produces for every platform message.
// It is read-only after creation.
type InboundMessage struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chat_id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Transport   Type      `json:"transport"`
	IsDM        bool      `json:"is_dm"`
	MentionsBot bool      `json:"mentions_bot,omitempty"`
	ChannelName string    `json:"channel_name,omitempty"`
}

// Text returns the trimmed message content.
func (m InboundMessage) Text() string {
	return strings.TrimSpace(m.Content)
}

// DisplayName returns the best human-readable sender name.
func (m InboundMessage) DisplayName() string {
	if name := strings.TrimSpace(m.Username); name != "" {
		return name
	}
	return strings.TrimSpace(m.UserID)
}

// OutboundMessage is a text reply addressed to one chat on one transport.
type OutboundMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// IsEmpty reports whether there is nothing to send.
func (m OutboundMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == ""
}
