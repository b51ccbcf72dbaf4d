package modules

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/channel/adapters/local"
	"github.com/memohai/chatbridge/internal/config"
	"github.com/memohai/chatbridge/internal/feed"
	"github.com/memohai/chatbridge/internal/handlers"
	"github.com/memohai/chatbridge/internal/server"
	"github.com/memohai/chatbridge/internal/trust"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(handlers.NewPingHandler),
		provideServerHandler(provideFeedHandler),
		provideServerHandler(provideTrustHandler),
		provideServerHandler(provideTransportsHandler),
		provideServerHandler(provideLocalHandler),
		provideServer,
	),
	fx.Invoke(startServer),
)

// ---------------------------------------------------------------------------
// server providers
// ---------------------------------------------------------------------------

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideFeedHandler(log *slog.Logger, consumer *feed.Consumer, mgr *channel.Manager) *handlers.FeedHandler {
	return handlers.NewFeedHandler(log, consumer, mgr)
}

func provideTrustHandler(log *slog.Logger, engine *trust.Engine) *handlers.TrustHandler {
	return handlers.NewTrustHandler(log, engine)
}

func provideTransportsHandler(log *slog.Logger, mgr *channel.Manager) *handlers.TransportsHandler {
	return handlers.NewTransportsHandler(log, mgr)
}

func provideLocalHandler(log *slog.Logger, adapter *local.LocalAdapter) *handlers.LocalHandler {
	return handlers.NewLocalHandler(log, adapter)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

// startServer is a no-op when server.addr is empty.
func startServer(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, srv *server.Server, shutdowner fx.Shutdowner) {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		log.Info("http server disabled")
		return
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		log.Warn("auth.jwt_secret is empty; every authenticated request will be rejected")
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
