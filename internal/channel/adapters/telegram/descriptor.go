// Package telegram implements the Telegram transport over the Bot API long-poll.
package telegram

import "github.com/memohai/chatbridge/internal/channel"

// Type is the registered transport identifier for Telegram.
const Type channel.Type = "telegram"
