package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is the snapshot format version. A stored snapshot with any other
// version is discarded whole; there is no migration.
const Version = 1

const trustedUsersKey = "trusted-users"

// ErrVersionMismatch is returned by Load when the stored snapshot has a different version.
var ErrVersionMismatch = errors.New("ledger version mismatch")

// Record is one trusted user as written to storage.
type Record struct {
	Transport       string    `json:"transport"`
	UserID          string    `json:"userId"`
	Username        string    `json:"username,omitempty"`
	DMChatID        string    `json:"dmChatId"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
	LastActiveAt    time.Time `json:"lastActiveAt"`
}

// Snapshot is the full trusted-user map keyed by "<transport>:<userID>".
type Snapshot struct {
	Version      int               `json:"version"`
	TrustedUsers map[string]Record `json:"trustedUsers"`
}

// NewSnapshot returns an empty snapshot at the current version.
func NewSnapshot() Snapshot {
	return Snapshot{Version: Version, TrustedUsers: map[string]Record{}}
}

// Ledger reads and writes the trust snapshot through a Store.
type Ledger struct {
	store  Store
	sealer *Sealer
}

// New returns a ledger over store; sealer may be nil for plain JSON at rest.
func New(store Store, sealer *Sealer) *Ledger {
	return &Ledger{store: store, sealer: sealer}
}

// Load returns the stored snapshot. A missing snapshot yields an empty one.
func (l *Ledger) Load(ctx context.Context) (Snapshot, error) {
	if l == nil || l.store == nil {
		return NewSnapshot(), errors.New("ledger store not configured")
	}
	raw, err := l.store.Get(ctx, trustedUsersKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewSnapshot(), nil
		}
		return NewSnapshot(), err
	}
	plain, err := l.open(raw)
	if err != nil {
		return NewSnapshot(), err
	}
	var snap Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return NewSnapshot(), fmt.Errorf("decode ledger: %w", err)
	}
	if snap.Version != Version {
		return NewSnapshot(), fmt.Errorf("%w: stored %d, want %d", ErrVersionMismatch, snap.Version, Version)
	}
	if snap.TrustedUsers == nil {
		snap.TrustedUsers = map[string]Record{}
	}
	return snap, nil
}

// Save writes snap, stamping the current version.
func (l *Ledger) Save(ctx context.Context, snap Snapshot) error {
	if l == nil || l.store == nil {
		return errors.New("ledger store not configured")
	}
	snap.Version = Version
	if snap.TrustedUsers == nil {
		snap.TrustedUsers = map[string]Record{}
	}
	plain, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	data := plain
	if l.sealer != nil {
		data, err = l.sealer.Seal(plain)
		if err != nil {
			return err
		}
	}
	return l.store.Set(ctx, trustedUsersKey, data)
}

func (l *Ledger) open(raw []byte) ([]byte, error) {
	sealed := IsSealed(raw)
	switch {
	case l.sealer == nil && sealed:
		return nil, ErrSealed
	case l.sealer == nil:
		return raw, nil
	case !sealed:
		return nil, ErrSealed
	default:
		return l.sealer.Open(raw)
	}
}
