package modules

import (
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/chatbridge/internal/config"
	"github.com/memohai/chatbridge/internal/logger"
)

// Mode selects which consumer surface the process serves.
type Mode string

const (
	ModeServe Mode = "serve"
	ModeMCP   Mode = "mcp"
)

// Options are supplied by the CLI before the graph is built.
type Options struct {
	ConfigPath string
	Mode       Mode
}

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
	),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// provideLogger sends logs to stderr in MCP mode, where stdout carries the protocol.
func provideLogger(cfg config.Config, opts Options) *slog.Logger {
	output := cfg.Log.Output
	if opts.Mode == ModeMCP {
		output = "stderr"
	}
	logger.InitOutput(output, cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

// FxLogger routes fx lifecycle events through slog.
func FxLogger(log *slog.Logger) fxevent.Logger {
	l := &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
	l.UseLogLevel(slog.LevelDebug)
	return l
}
