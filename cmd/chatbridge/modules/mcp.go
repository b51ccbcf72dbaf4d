package modules

import (
	"context"
	"errors"
	"log/slog"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/fx"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/feed"
	"github.com/memohai/chatbridge/internal/mcp"
)

var MCPModule = fx.Module(
	"mcp",
	fx.Provide(provideMCPServer),
	fx.Invoke(runMCPServer),
)

func provideMCPServer(log *slog.Logger, consumer *feed.Consumer, mgr *channel.Manager) *gomcp.Server {
	return mcp.NewServer(log, consumer, mgr)
}

// runMCPServer serves stdio and stops the application when the client goes away.
func runMCPServer(lc fx.Lifecycle, log *slog.Logger, srv *gomcp.Server, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				err := mcp.Run(ctx, srv)
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Error("mcp server failed", slog.Any("error", err))
				}
				log.Info("mcp client disconnected")
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
