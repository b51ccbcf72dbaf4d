package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/memohai/chatbridge/cmd/chatbridge/modules"
	"github.com/memohai/chatbridge/internal/auth"
	"github.com/memohai/chatbridge/internal/config"
	"github.com/memohai/chatbridge/internal/version"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the transports and the HTTP consumer API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Starting chatbridge %s\n", version.GetInfo())
			return runApp(modules.Options{ConfigPath: *configPath, Mode: modules.ModeServe})
		},
	}
}

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the transports and serve the message feed as MCP tools over stdio",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runApp(modules.Options{ConfigPath: *configPath, Mode: modules.ModeMCP}, modules.MCPModule)
		},
	}
}

func runApp(opts modules.Options, extra ...fx.Option) error {
	options := []fx.Option{
		fx.Supply(opts),
		modules.InfraModule,
		modules.TrustModule,
		modules.ChannelModule,
		modules.ServerModule,
		fx.WithLogger(modules.FxLogger),
	}
	app := fx.New(append(options, extra...)...)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP consumer API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL()
			}
			token, expiresAt, err := auth.GenerateToken(subject, cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			slog.Debug("token issued", slog.String("subject", subject), slog.Time("expires_at", expiresAt))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "agent", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.jwt_expires_in)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Details())
		},
	}
}
