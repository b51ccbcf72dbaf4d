package modules

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/channel/adapters/discord"
	"github.com/memohai/chatbridge/internal/channel/adapters/feishu"
	"github.com/memohai/chatbridge/internal/channel/adapters/local"
	"github.com/memohai/chatbridge/internal/channel/adapters/slack"
	"github.com/memohai/chatbridge/internal/channel/adapters/telegram"
	"github.com/memohai/chatbridge/internal/config"
	"github.com/memohai/chatbridge/internal/feed"
	"github.com/memohai/chatbridge/internal/router"
	"github.com/memohai/chatbridge/internal/trust"
)

var ChannelModule = fx.Module(
	"channel",
	fx.Provide(
		feed.NewQueue,
		provideLocalAdapter,
		provideChannelRegistry,
		provideChannelRouter,
		provideChannelManager,
		provideConsumer,
	),
	fx.Invoke(startChannelManager),
)

// ---------------------------------------------------------------------------
// channel providers
// ---------------------------------------------------------------------------

// provideLocalAdapter returns nil when the local transport is disabled.
func provideLocalAdapter(log *slog.Logger, cfg config.Config) *local.LocalAdapter {
	if !cfg.Local.Enabled {
		return nil
	}
	return local.NewLocalAdapter(log, local.NewRouteHub())
}

func provideChannelRegistry(log *slog.Logger, cfg config.Config, localAdapter *local.LocalAdapter) *channel.Registry {
	registry := channel.NewRegistry()
	if cfg.Telegram.Enabled {
		registry.MustRegister(telegram.NewTelegramAdapter(log, telegram.Config{BotToken: cfg.Telegram.BotToken}))
	}
	if cfg.Discord.Enabled {
		registry.MustRegister(discord.NewDiscordAdapter(log, discord.Config{BotToken: cfg.Discord.BotToken}))
	}
	if cfg.Slack.Enabled {
		registry.MustRegister(slack.NewSlackAdapter(log, slack.Config{BotToken: cfg.Slack.BotToken, AppToken: cfg.Slack.AppToken}))
	}
	if cfg.Feishu.Enabled {
		registry.MustRegister(feishu.NewFeishuAdapter(log, feishu.Config{
			AppID:             cfg.Feishu.AppID,
			AppSecret:         cfg.Feishu.AppSecret,
			VerificationToken: cfg.Feishu.VerificationToken,
			EncryptKey:        cfg.Feishu.EncryptKey,
			BotOpenID:         cfg.Feishu.BotOpenID,
		}))
	}
	if localAdapter != nil {
		registry.MustRegister(localAdapter)
	}
	if len(registry.Types()) == 0 {
		log.Warn("no transports enabled")
	}
	return registry
}

func provideChannelRouter(log *slog.Logger, engine *trust.Engine, queue *feed.Queue) *router.ChannelInboundProcessor {
	return router.NewChannelInboundProcessor(log, engine, queue)
}

func provideChannelManager(log *slog.Logger, cfg config.Config, registry *channel.Registry, processor *router.ChannelInboundProcessor) *channel.Manager {
	mgr := channel.NewManager(log, registry, processor)
	mgr.SetRateLimit(telegram.Type, cfg.Telegram.PerSecond, cfg.Telegram.Burst)
	mgr.SetRateLimit(discord.Type, cfg.Discord.PerSecond, cfg.Discord.Burst)
	mgr.SetRateLimit(slack.Type, cfg.Slack.PerSecond, cfg.Slack.Burst)
	mgr.SetRateLimit(feishu.Type, cfg.Feishu.PerSecond, cfg.Feishu.Burst)
	return mgr
}

func provideConsumer(log *slog.Logger, queue *feed.Queue, mgr *channel.Manager) *feed.Consumer {
	return feed.NewConsumer(log, queue, mgr)
}

func startChannelManager(lc fx.Lifecycle, mgr *channel.Manager) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			mgr.Start(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return mgr.Shutdown(stopCtx)
		},
	})
}
