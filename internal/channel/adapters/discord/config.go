package discord

import (
	"errors"
	"strings"
)

// Config holds the Discord bot credentials.
type Config struct {
	BotToken string
}

func (c Config) normalized() Config {
	c.BotToken = strings.TrimPrefix(strings.TrimSpace(c.BotToken), "Bot ")
	return c
}

func (c Config) validate() error {
	if c.BotToken == "" {
		return errors.New("discord botToken is required")
	}
	return nil
}
