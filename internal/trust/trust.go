package trust

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/memohai/chatbridge/internal/channel"
)

// IsTrusted reports whether the user is trusted on transport.
func (e *Engine) IsTrusted(transport channel.Type, userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.trusted[NewKey(transport, userID)]
	return ok
}

// TouchUser refreshes the user's last activity in memory. It never flushes.
func (e *Engine) TouchUser(transport channel.Type, userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if user, ok := e.trusted[NewKey(transport, userID)]; ok {
		user.LastActiveAt = e.now()
	}
}

// UntrustUser removes the user and every channel they authorized, then flushes
// the ledger. It reports whether a user was removed.
func (e *Engine) UntrustUser(ctx context.Context, transport channel.Type, userID string) bool {
	key := NewKey(transport, userID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.trusted[key]; !ok {
		return false
	}
	cascaded := e.removeTrustedLocked(key)
	e.saveLocked(ctx)
	e.logger.Info("user untrusted",
		slog.String("user", key.String()),
		slog.Int("channels_revoked", cascaded),
	)
	return true
}

// PruneInactive drops users inactive beyond TrustExpiry and flushes when any
// were removed. It returns the number removed.
func (e *Engine) PruneInactive(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	dropped := e.sweepTrustLocked(e.now())
	if len(dropped) > 0 {
		e.saveLocked(ctx)
		e.logger.Info("inactive users pruned", slog.Int("count", len(dropped)))
	}
	return len(dropped)
}

// removeTrustedLocked deletes the user, the channels they authorized and their
// authenticated DM chat. It returns the number of channels removed.
func (e *Engine) removeTrustedLocked(key Key) int {
	user, ok := e.trusted[key]
	if !ok {
		return 0
	}
	delete(e.trusted, key)
	if user.DMChatID != "" {
		delete(e.authenticated, chatKey(key.Transport, user.DMChatID))
	}
	owner := key.String()
	removed := 0
	for chKey, ch := range e.channels {
		if ch.AuthorizedBy == owner {
			delete(e.channels, chKey)
			removed++
		}
	}
	return removed
}

// TrustedUsers returns a sorted copy of every trusted user.
func (e *Engine) TrustedUsers() []TrustedUser {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TrustedUser, 0, len(e.trusted))
	for _, user := range e.trusted {
		out = append(out, *user)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

// FindTrustedByUsername resolves a username (with or without a leading "@")
// among users trusted on transport. Matching is case-insensitive.
func (e *Engine) FindTrustedByUsername(transport channel.Type, username string) (TrustedUser, bool) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if name == "" {
		return TrustedUser{}, false
	}
	for _, user := range e.TrustedUsers() {
		if user.Transport == transport && strings.ToLower(user.Username) == name {
			return user, true
		}
	}
	return TrustedUser{}, false
}
