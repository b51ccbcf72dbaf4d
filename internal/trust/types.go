package trust

import (
	"strings"
	"time"

	"github.com/memohai/chatbridge/internal/channel"
)

// Timing contract. These are not configurable at runtime.
const (
	ChallengeTTL    = 2 * time.Minute
	MaxAttempts     = 3
	LockoutDuration = 5 * time.Minute
	TrustExpiry     = 30 * 24 * time.Hour
)

// Key scopes an identifier to one transport so equal IDs on two networks never collide.
type Key struct {
	Transport channel.Type
	ID        string
}

// NewKey builds a key with a trimmed ID.
func NewKey(transport channel.Type, id string) Key {
	return Key{Transport: transport, ID: strings.TrimSpace(id)}
}

// String returns the compound "<transport>:<id>" form used by the ledger.
func (k Key) String() string {
	return string(k.Transport) + ":" + k.ID
}

// ParseKey reverses Key.String.
func ParseKey(raw string) (Key, bool) {
	transport, id, ok := strings.Cut(raw, ":")
	if !ok || transport == "" || id == "" {
		return Key{}, false
	}
	return Key{Transport: channel.Type(transport), ID: id}, true
}

// Mode is the group response policy of an authorized channel.
type Mode string

const (
	ModeAll         Mode = "all"
	ModeMentions    Mode = "mentions"
	ModeTrustedOnly Mode = "trusted-only"
)

// DefaultMode is used when enable is given no mode.
const DefaultMode = ModeMentions

// ParseMode accepts a mode name case-insensitively.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeAll:
		return ModeAll, true
	case ModeMentions:
		return ModeMentions, true
	case ModeTrustedOnly:
		return ModeTrustedOnly, true
	default:
		return "", false
	}
}

// TrustedUser is an identity that completed a challenge in a direct message.
type TrustedUser struct {
	Transport       channel.Type `json:"transport"`
	UserID          string       `json:"user_id"`
	Username        string       `json:"username,omitempty"`
	DMChatID        string       `json:"dm_chat_id"`
	AuthenticatedAt time.Time    `json:"authenticated_at"`
	LastActiveAt    time.Time    `json:"last_active_at"`
}

// Key returns the user's compound key.
func (u TrustedUser) Key() Key {
	return Key{Transport: u.Transport, ID: u.UserID}
}

// AuthorizedChannel is a group context the bot may answer in for this run.
type AuthorizedChannel struct {
	Transport    channel.Type `json:"transport"`
	ChannelID    string       `json:"channel_id"`
	ChannelName  string       `json:"channel_name,omitempty"`
	AuthorizedBy string       `json:"authorized_by"`
	AuthorizedAt time.Time    `json:"authorized_at"`
	Mode         Mode         `json:"mode"`
}

// PendingChallenge is an outstanding code bound to one chat.
type PendingChallenge struct {
	Transport channel.Type `json:"transport"`
	ChatID    string       `json:"chat_id"`
	Username  string       `json:"username,omitempty"`
	Code      string       `json:"code"`
	ExpiresAt time.Time    `json:"expires_at"`
	Attempts  int          `json:"attempts"`
}

// ChallengeState describes a chat's challenge record as stored, before any expiry sweep.
type ChallengeState int

const (
	ChallengeNone ChallengeState = iota
	ChallengeLive
	ChallengeStale
)

// SeenChannel is a cached channel name observed in group traffic.
type SeenChannel struct {
	ChannelID   string
	ChannelName string
}

// Outcome is the result of a challenge response.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeExpired
	OutcomeWrong
	OutcomeBlocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeExpired:
		return "expired"
	case OutcomeWrong:
		return "wrong"
	case OutcomeBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// VerifyResult carries the outcome and, for OutcomeWrong, the attempts left.
type VerifyResult struct {
	Outcome   Outcome
	Remaining int
}

// Reason explains a denied Decision.
type Reason string

const (
	ReasonNotDMAuthed          Reason = "not-dm-authed"
	ReasonChannelNotAuthorized Reason = "channel-not-authorized"
	ReasonNotTrustedInChannel  Reason = "not-trusted-in-channel"
	ReasonNoMention            Reason = "no-mention"
)

// Decision is the answer of CanRespondTo.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason Reason) Decision { return Decision{Reason: reason} }
