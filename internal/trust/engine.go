// Package trust is the authorization engine: per-user trust, per-channel
// authorization, challenge codes, lockouts and the seen-channel cache.
// The Engine is the only writer of this state.
package trust

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/ledger"
)

// Persister stores the trusted-user snapshot.
type Persister interface {
	Load(ctx context.Context) (ledger.Snapshot, error)
	Save(ctx context.Context, snap ledger.Snapshot) error
}

// Options configures an Engine. Zero values select production defaults.
type Options struct {
	Logger    *slog.Logger
	Persister Persister
	Notifier  Notifier
	Now       func() time.Time
	Rand      io.Reader
}

// Engine owns every piece of security state. One mutex guards all maps so an
// operation never observes two maps out of step.
type Engine struct {
	mu sync.Mutex

	logger    *slog.Logger
	persister Persister
	notifier  Notifier
	now       func() time.Time
	rand      io.Reader

	challenges    map[Key]*PendingChallenge
	lockouts      map[Key]time.Time
	authenticated map[Key]struct{}
	trusted       map[Key]*TrustedUser
	channels      map[Key]*AuthorizedChannel
	seen          map[Key]SeenChannel
}

// NewEngine creates an engine with empty state. Call Load to restore trust.
func NewEngine(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "trust"))
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Reader
	}
	return &Engine{
		logger:        log,
		persister:     opts.Persister,
		notifier:      notifier,
		now:           now,
		rand:          rnd,
		challenges:    map[Key]*PendingChallenge{},
		lockouts:      map[Key]time.Time{},
		authenticated: map[Key]struct{}{},
		trusted:       map[Key]*TrustedUser{},
		channels:      map[Key]*AuthorizedChannel{},
		seen:          map[Key]SeenChannel{},
	}
}

// Load restores trusted users from the ledger, dropping users inactive for
// longer than TrustExpiry. The pruned snapshot is written back when anything
// was dropped. Failures are logged and leave the engine with empty trust.
func (e *Engine) Load(ctx context.Context) {
	if e.persister == nil {
		return
	}
	snap, err := e.persister.Load(ctx)
	if err != nil {
		if errors.Is(err, ledger.ErrVersionMismatch) {
			e.logger.Warn("trust ledger version mismatch, starting empty", slog.Any("error", err))
		} else {
			e.logger.Error("load trust ledger failed, starting empty", slog.Any("error", err))
		}
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.trusted = map[Key]*TrustedUser{}
	for raw, rec := range snap.TrustedUsers {
		key, ok := ParseKey(raw)
		if !ok {
			e.logger.Warn("skip malformed ledger entry", slog.String("key", raw))
			continue
		}
		e.trusted[key] = &TrustedUser{
			Transport:       key.Transport,
			UserID:          key.ID,
			Username:        rec.Username,
			DMChatID:        rec.DMChatID,
			AuthenticatedAt: rec.AuthenticatedAt,
			LastActiveAt:    rec.LastActiveAt,
		}
	}
	dropped := e.sweepTrustLocked(e.now())
	e.logger.Info("trust ledger loaded",
		slog.Int("trusted", len(e.trusted)),
		slog.Int("expired", len(dropped)),
	)
	if len(dropped) > 0 {
		e.saveLocked(ctx)
	}
}

// snapshotLocked converts the trusted map into its persisted form.
func (e *Engine) snapshotLocked() ledger.Snapshot {
	snap := ledger.NewSnapshot()
	for key, user := range e.trusted {
		snap.TrustedUsers[key.String()] = ledger.Record{
			Transport:       string(user.Transport),
			UserID:          user.UserID,
			Username:        user.Username,
			DMChatID:        user.DMChatID,
			AuthenticatedAt: user.AuthenticatedAt,
			LastActiveAt:    user.LastActiveAt,
		}
	}
	return snap
}

// saveLocked flushes the trusted map. Errors are logged; in-memory state stays authoritative.
func (e *Engine) saveLocked(ctx context.Context) {
	if e.persister == nil {
		return
	}
	if err := e.persister.Save(ctx, e.snapshotLocked()); err != nil {
		e.logger.Error("save trust ledger failed", slog.Any("error", err))
	}
}

func chatKey(transport channel.Type, chatID string) Key {
	return NewKey(transport, chatID)
}
