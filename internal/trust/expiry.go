package trust

import "time"

// All lazy expiry goes through these helpers. Callers hold e.mu.

func expired(deadline, now time.Time) bool {
	return now.After(deadline)
}

// sweepChallengeLocked returns the live challenge for key, deleting it if stale.
func (e *Engine) sweepChallengeLocked(key Key, now time.Time) *PendingChallenge {
	pending, ok := e.challenges[key]
	if !ok {
		return nil
	}
	if expired(pending.ExpiresAt, now) {
		delete(e.challenges, key)
		return nil
	}
	return pending
}

// sweepLockoutLocked returns the lockout deadline for key, deleting it if stale.
func (e *Engine) sweepLockoutLocked(key Key, now time.Time) (time.Time, bool) {
	until, ok := e.lockouts[key]
	if !ok {
		return time.Time{}, false
	}
	if expired(until, now) {
		delete(e.lockouts, key)
		return time.Time{}, false
	}
	return until, true
}

// sweepChallengesLocked drops every stale challenge.
func (e *Engine) sweepChallengesLocked(now time.Time) {
	for key := range e.challenges {
		e.sweepChallengeLocked(key, now)
	}
}

// sweepTrustLocked removes users inactive beyond TrustExpiry, cascading their
// channels, and returns the removed keys.
func (e *Engine) sweepTrustLocked(now time.Time) []Key {
	var dropped []Key
	for key, user := range e.trusted {
		if expired(user.LastActiveAt.Add(TrustExpiry), now) {
			e.removeTrustedLocked(key)
			dropped = append(dropped, key)
		}
	}
	return dropped
}
