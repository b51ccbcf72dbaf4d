package trust

import "github.com/memohai/chatbridge/internal/channel"

// CanRespondTo is the single authorization predicate for inbound messages.
//
// Direct messages are allowed from an authenticated chat or a trusted sender.
// Group messages need an authorized channel, then the channel mode decides:
// all admits anyone, trusted-only admits trusted senders, and mentions admits
// trusted senders plus anyone who mentions the bot.
func (e *Engine) CanRespondTo(msg channel.InboundMessage) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, senderTrusted := e.trusted[NewKey(msg.Transport, msg.UserID)]
	if msg.IsDM {
		if _, ok := e.authenticated[chatKey(msg.Transport, msg.ChatID)]; ok || senderTrusted {
			return allow()
		}
		return deny(ReasonNotDMAuthed)
	}

	ch, ok := e.channels[NewKey(msg.Transport, msg.ChatID)]
	if !ok {
		return deny(ReasonChannelNotAuthorized)
	}
	switch ch.Mode {
	case ModeAll:
		return allow()
	case ModeTrustedOnly:
		if senderTrusted {
			return allow()
		}
		return deny(ReasonNotTrustedInChannel)
	default:
		if senderTrusted || msg.MentionsBot {
			return allow()
		}
		return deny(ReasonNoMention)
	}
}
