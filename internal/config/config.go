// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultJWTExpiresIn  = "24h"
	DefaultLedgerDriver  = "file"
	DefaultLedgerPath    = "data/ledger"
	DefaultPruneSchedule = "@every 1h"
	DefaultSendRate      = 1.0
	DefaultSendBurst     = 5
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log         LogConfig         `toml:"log"`
	Server      ServerConfig      `toml:"server"`
	Auth        AuthConfig        `toml:"auth"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Telegram    TelegramConfig    `toml:"telegram"`
	Discord     DiscordConfig     `toml:"discord"`
	Slack       SlackConfig       `toml:"slack"`
	Feishu      FeishuConfig      `toml:"feishu"`
	Local       LocalConfig       `toml:"local"`
}

// LogConfig holds logging level, format and output (e.g. level=info, format=text, output=stdout).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// ServerConfig holds the HTTP server listen address. An empty address disables HTTP.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AuthConfig holds JWT secret and token expiry (e.g. 24h) for the consumer API.
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// TokenTTL parses JWTExpiresIn, falling back to the default on bad input.
func (c AuthConfig) TokenTTL() time.Duration {
	if d, err := time.ParseDuration(c.JWTExpiresIn); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultJWTExpiresIn)
	return d
}

// LedgerConfig selects the durable store for the trust ledger.
// Driver is one of "file", "sqlite" or "memory". A non-empty Secret seals the ledger at rest.
type LedgerConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	Secret string `toml:"secret"`
}

// MaintenanceConfig holds the cron schedule of the inactive-trust sweep. Empty disables it.
type MaintenanceConfig struct {
	PruneSchedule string `toml:"prune_schedule"`
}

// RateConfig bounds outbound sends per transport.
type RateConfig struct {
	PerSecond float64 `toml:"rate_per_second"`
	Burst     int     `toml:"rate_burst"`
}

// TelegramConfig holds the Telegram bot token.
type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	RateConfig
}

// DiscordConfig holds the Discord bot token.
type DiscordConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	RateConfig
}

// SlackConfig holds the Slack bot token and the app-level token used by socket mode.
type SlackConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	AppToken string `toml:"app_token"`
	RateConfig
}

// FeishuConfig holds the Feishu app credentials for the long-connection event stream.
type FeishuConfig struct {
	Enabled           bool   `toml:"enabled"`
	AppID             string `toml:"app_id"`
	AppSecret         string `toml:"app_secret"`
	VerificationToken string `toml:"verification_token"`
	EncryptKey        string `toml:"encrypt_key"`
	BotOpenID         string `toml:"bot_open_id"`
	RateConfig
}

// LocalConfig enables the in-process transport fed over HTTP.
type LocalConfig struct {
	Enabled bool `toml:"enabled"`
}

func defaultRate() RateConfig {
	return RateConfig{PerSecond: DefaultSendRate, Burst: DefaultSendBurst}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Ledger: LedgerConfig{
			Driver: DefaultLedgerDriver,
			Path:   DefaultLedgerPath,
		},
		Maintenance: MaintenanceConfig{
			PruneSchedule: DefaultPruneSchedule,
		},
		Telegram: TelegramConfig{RateConfig: RateConfig{PerSecond: 20, Burst: 20}},
		Discord:  DiscordConfig{RateConfig: RateConfig{PerSecond: 5, Burst: 5}},
		Slack:    SlackConfig{RateConfig: defaultRate()},
		Feishu:   FeishuConfig{RateConfig: RateConfig{PerSecond: 5, Burst: 5}},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
