package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/trust"
)

// runCommand executes cmd for a trusted sender and returns the reply text.
func (p *ChannelInboundProcessor) runCommand(ctx context.Context, msg channel.InboundMessage, cmd Command) string {
	p.logger.Info("admin command",
		slog.String("transport", msg.Transport.String()),
		slog.String("user_id", msg.UserID),
		slog.String("command", fmt.Sprintf("%T", cmd)),
	)
	switch c := cmd.(type) {
	case EnableCommand:
		return p.enable(ctx, msg, c)
	case DisableCommand:
		return p.disable(msg, c)
	case ListChannelsCommand:
		return formatChannels(p.channelsFor(msg.Transport))
	case TrustedCommand:
		return formatTrusted(p.trustedFor(msg.Transport))
	case RevokeCommand:
		return p.revoke(ctx, msg, c)
	case HelpCommand:
		return helpText
	default:
		return helpText
	}
}

// resolveChannel maps a typed reference to a channel ID and display name
// through the seen-channel cache, falling back to the literal reference.
func (p *ChannelInboundProcessor) resolveChannel(transport channel.Type, ref string) (string, string) {
	if seen, ok := p.engine.FindChannelByName(transport, ref); ok {
		return seen.ChannelID, seen.ChannelName
	}
	if existing, ok := p.engine.AuthorizedChannel(transport, ref); ok {
		return existing.ChannelID, existing.ChannelName
	}
	return ref, ""
}

func (p *ChannelInboundProcessor) enable(ctx context.Context, msg channel.InboundMessage, cmd EnableCommand) string {
	id, name := p.resolveChannel(msg.Transport, cmd.Ref)
	if !p.engine.AuthorizeChannel(ctx, msg.Transport, id, msg.UserID, name, cmd.Mode) {
		return fmt.Sprintf("Could not enable %s.", describeChannel(id, name))
	}
	return fmt.Sprintf("Enabled %s in %s mode.", describeChannel(id, name), cmd.Mode)
}

func (p *ChannelInboundProcessor) disable(msg channel.InboundMessage, cmd DisableCommand) string {
	id, name := p.resolveChannel(msg.Transport, cmd.Ref)
	if !p.engine.RevokeChannel(msg.Transport, id, msg.UserID) {
		return fmt.Sprintf("%s is not enabled.", describeChannel(id, name))
	}
	return fmt.Sprintf("Disabled %s.", describeChannel(id, name))
}

func (p *ChannelInboundProcessor) revoke(ctx context.Context, msg channel.InboundMessage, cmd RevokeCommand) string {
	target := strings.TrimSpace(cmd.Target)
	userID := target
	if strings.HasPrefix(target, "@") {
		name := strings.TrimPrefix(target, "@")
		if strings.EqualFold(name, strings.TrimPrefix(msg.Username, "@")) {
			return replyRevokeSelf
		}
		user, ok := p.engine.FindTrustedByUsername(msg.Transport, name)
		if !ok {
			return fmt.Sprintf("No trusted user named %s.", target)
		}
		userID = user.UserID
	}
	if userID == msg.UserID {
		return replyRevokeSelf
	}
	if !p.engine.UntrustUser(ctx, msg.Transport, userID) {
		return fmt.Sprintf("%s is not trusted.", target)
	}
	return fmt.Sprintf("Revoked trust for %s.", target)
}

func (p *ChannelInboundProcessor) channelsFor(transport channel.Type) []trust.AuthorizedChannel {
	var out []trust.AuthorizedChannel
	for _, ch := range p.engine.AuthorizedChannels() {
		if ch.Transport == transport {
			out = append(out, ch)
		}
	}
	return out
}

func (p *ChannelInboundProcessor) trustedFor(transport channel.Type) []trust.TrustedUser {
	var out []trust.TrustedUser
	for _, user := range p.engine.TrustedUsers() {
		if user.Transport == transport {
			out = append(out, user)
		}
	}
	return out
}
