package telegram

import (
	"errors"
	"strings"
)

const defaultPollTimeout = 30

// Config holds the Telegram bot credentials.
type Config struct {
	BotToken string
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout int
}

func (c Config) normalized() Config {
	c.BotToken = strings.TrimSpace(c.BotToken)
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	return c
}

func (c Config) validate() error {
	if c.BotToken == "" {
		return errors.New("telegram botToken is required")
	}
	return nil
}
