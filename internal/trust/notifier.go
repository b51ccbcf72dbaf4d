package trust

import (
	"context"
	"log/slog"
)

// Notifier surfaces a freshly created challenge code to the operator through
// a side channel. The code never travels over the chat it protects.
type Notifier interface {
	ChallengeCreated(ctx context.Context, challenge PendingChallenge)
}

// LogNotifier writes challenge codes to the operator log at WARN level.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs through log.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) ChallengeCreated(ctx context.Context, challenge PendingChallenge) {
	n.logger.WarnContext(ctx, "authentication challenge issued",
		slog.String("transport", challenge.Transport.String()),
		slog.String("chat_id", challenge.ChatID),
		slog.String("username", challenge.Username),
		slog.String("code", challenge.Code),
		slog.Time("expires_at", challenge.ExpiresAt),
	)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, challenge PendingChallenge)

func (f NotifierFunc) ChallengeCreated(ctx context.Context, challenge PendingChallenge) {
	f(ctx, challenge)
}
