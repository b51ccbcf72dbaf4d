package trust

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/chatbridge/internal/channel"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// generateCode draws a uniform code in [100000, 999999].
func (e *Engine) generateCode() (string, error) {
	n, err := rand.Int(e.rand, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate challenge code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// CreateChallenge issues a new code for the chat, replacing any outstanding one,
// and hands it to the Notifier.
func (e *Engine) CreateChallenge(ctx context.Context, transport channel.Type, chatID, username string) (string, error) {
	code, err := e.generateCode()
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	pending := e.putChallengeLocked(chatKey(transport, chatID), username, code)
	e.mu.Unlock()

	e.notifier.ChallengeCreated(ctx, pending)
	return code, nil
}

// EnsureChallenge issues a code only when the chat has no live challenge. The
// check and the insert happen under one lock, so concurrent first messages
// from a chat produce a single challenge. created is false when one was
// already pending; a stale record is replaced.
func (e *Engine) EnsureChallenge(ctx context.Context, transport channel.Type, chatID, username string) (code string, created bool, err error) {
	code, err = e.generateCode()
	if err != nil {
		return "", false, err
	}
	key := chatKey(transport, chatID)

	e.mu.Lock()
	if e.sweepChallengeLocked(key, e.now()) != nil {
		e.mu.Unlock()
		return "", false, nil
	}
	pending := e.putChallengeLocked(key, username, code)
	e.mu.Unlock()

	e.notifier.ChallengeCreated(ctx, pending)
	return code, true, nil
}

func (e *Engine) putChallengeLocked(key Key, username, code string) PendingChallenge {
	pending := PendingChallenge{
		Transport: key.Transport,
		ChatID:    key.ID,
		Username:  strings.TrimSpace(username),
		Code:      code,
		ExpiresAt: e.now().Add(ChallengeTTL),
	}
	e.challenges[key] = &pending
	return pending
}

// HasPendingChallenge reports whether the chat has a live challenge.
func (e *Engine) HasPendingChallenge(transport channel.Type, chatID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sweepChallengeLocked(chatKey(transport, chatID), e.now()) != nil
}

// ChallengeStatus reports the chat's challenge record without expiring it, so a
// late response can still be answered as expired by VerifyChallenge.
func (e *Engine) ChallengeStatus(transport channel.Type, chatID string) ChallengeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending, ok := e.challenges[chatKey(transport, chatID)]
	switch {
	case !ok:
		return ChallengeNone
	case expired(pending.ExpiresAt, e.now()):
		return ChallengeStale
	default:
		return ChallengeLive
	}
}

// VerifyChallenge checks a response against the chat's challenge. On success the
// chat is authenticated and, for direct messages only, the user becomes trusted.
func (e *Engine) VerifyChallenge(ctx context.Context, transport channel.Type, chatID, response, userID, username string, isDM bool) VerifyResult {
	key := chatKey(transport, chatID)

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	if _, locked := e.sweepLockoutLocked(key, now); locked {
		return VerifyResult{Outcome: OutcomeBlocked}
	}
	pending := e.sweepChallengeLocked(key, now)
	if pending == nil {
		return VerifyResult{Outcome: OutcomeExpired}
	}

	if strings.TrimSpace(response) == pending.Code {
		delete(e.challenges, key)
		e.authenticated[key] = struct{}{}
		if isDM {
			userKey := NewKey(transport, userID)
			e.trusted[userKey] = &TrustedUser{
				Transport:       transport,
				UserID:          userKey.ID,
				Username:        strings.TrimSpace(username),
				DMChatID:        key.ID,
				AuthenticatedAt: now,
				LastActiveAt:    now,
			}
			e.saveLocked(ctx)
		}
		e.logger.Info("challenge passed",
			slog.String("transport", transport.String()),
			slog.String("chat_id", key.ID),
			slog.String("user_id", userID),
			slog.Bool("trusted", isDM),
		)
		return VerifyResult{Outcome: OutcomeSuccess}
	}

	pending.Attempts++
	if pending.Attempts >= MaxAttempts {
		delete(e.challenges, key)
		e.lockouts[key] = now.Add(LockoutDuration)
		e.logger.Warn("challenge attempts exhausted, chat locked out",
			slog.String("transport", transport.String()),
			slog.String("chat_id", key.ID),
			slog.Duration("lockout", LockoutDuration),
		)
		return VerifyResult{Outcome: OutcomeBlocked}
	}
	return VerifyResult{Outcome: OutcomeWrong, Remaining: MaxAttempts - pending.Attempts}
}

// IsBlocked reports whether the chat is locked out.
func (e *Engine) IsBlocked(transport channel.Type, chatID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, locked := e.sweepLockoutLocked(chatKey(transport, chatID), e.now())
	return locked
}

// BlockTimeRemaining returns the lockout time left in whole minutes, rounded up.
// It is zero when the chat is not locked out.
func (e *Engine) BlockTimeRemaining(transport channel.Type, chatID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	until, locked := e.sweepLockoutLocked(chatKey(transport, chatID), now)
	if !locked {
		return 0
	}
	left := until.Sub(now)
	minutes := int(left / time.Minute)
	if left%time.Minute > 0 {
		minutes++
	}
	return minutes
}

// IsAuthenticated reports whether the chat passed a challenge during this run.
func (e *Engine) IsAuthenticated(transport channel.Type, chatID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.authenticated[chatKey(transport, chatID)]
	return ok
}

// PendingChallenges lists live challenges, codes included, for the operator.
func (e *Engine) PendingChallenges() []PendingChallenge {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sweepChallengesLocked(e.now())
	out := make([]PendingChallenge, 0, len(e.challenges))
	for _, pending := range e.challenges {
		out = append(out, *pending)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}
