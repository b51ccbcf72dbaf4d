package feishu

import (
	"errors"
	"strings"
)

// Config holds the Feishu app credentials used by the long-connection client.
// BotOpenID, when set, narrows mention detection to the bot itself.
type Config struct {
	AppID             string
	AppSecret         string
	VerificationToken string
	EncryptKey        string
	BotOpenID         string
}

func (c Config) normalized() Config {
	c.AppID = strings.TrimSpace(c.AppID)
	c.AppSecret = strings.TrimSpace(c.AppSecret)
	c.BotOpenID = strings.TrimSpace(c.BotOpenID)
	return c
}

func (c Config) validate() error {
	if c.AppID == "" {
		return errors.New("feishu appId is required")
	}
	if c.AppSecret == "" {
		return errors.New("feishu appSecret is required")
	}
	return nil
}
