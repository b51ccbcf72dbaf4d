package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/memohai/chatbridge/internal/config"
	"github.com/memohai/chatbridge/internal/ledger"
	"github.com/memohai/chatbridge/internal/trust"
)

var TrustModule = fx.Module(
	"trust",
	fx.Provide(
		provideLedgerStore,
		provideLedger,
		provideTrustEngine,
	),
	fx.Invoke(loadTrustEngine, schedulePrune),
)

// ---------------------------------------------------------------------------
// trust providers
// ---------------------------------------------------------------------------

func provideLedgerStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (ledger.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Ledger.Driver))
	switch driver {
	case "", "file":
		return ledger.NewFileStore(cfg.Ledger.Path), nil
	case "memory":
		log.Warn("trust ledger is in memory; trusted users are lost on restart")
		return ledger.NewMemoryStore(), nil
	case "sqlite":
		store, err := ledger.OpenSQLiteStore(context.Background(), cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return store.Close()
			},
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
}

func provideLedger(store ledger.Store, cfg config.Config) *ledger.Ledger {
	return ledger.New(store, ledger.NewSealer(cfg.Ledger.Secret))
}

func provideTrustEngine(log *slog.Logger, l *ledger.Ledger) *trust.Engine {
	return trust.NewEngine(trust.Options{
		Logger:    log,
		Persister: l,
		Notifier:  trust.NewLogNotifier(log),
	})
}

func loadTrustEngine(lc fx.Lifecycle, engine *trust.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			engine.Load(ctx)
			return nil
		},
	})
}

// schedulePrune runs PruneInactive on the configured cron schedule.
func schedulePrune(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, engine *trust.Engine) error {
	spec := strings.TrimSpace(cfg.Maintenance.PruneSchedule)
	if spec == "" {
		return nil
	}
	log = log.With(slog.String("component", "maintenance"))
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(spec, func() {
		if n := engine.PruneInactive(context.Background()); n > 0 {
			log.Info("pruned inactive trusted users", slog.Int("count", n))
		}
	}); err != nil {
		return fmt.Errorf("prune schedule %q: %w", spec, err)
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}
