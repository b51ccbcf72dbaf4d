// Package router classifies every inbound message against the trust engine
// and either replies, drops it, or hands it to the consumer feed.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/memohai/chatbridge/internal/channel"
	"github.com/memohai/chatbridge/internal/channel/adapters/adapterutil"
	"github.com/memohai/chatbridge/internal/trust"
)

// Feed receives messages that passed classification.
type Feed interface {
	Push(msg channel.InboundMessage)
}

// ChannelInboundProcessor is the single entry point for messages from every adapter.
type ChannelInboundProcessor struct {
	engine *trust.Engine
	feed   Feed
	logger *slog.Logger
}

func NewChannelInboundProcessor(log *slog.Logger, engine *trust.Engine, feed Feed) *ChannelInboundProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &ChannelInboundProcessor{
		engine: engine,
		feed:   feed,
		logger: log.With(slog.String("component", "channel_router")),
	}
}

// HandleInbound applies the routing order: lockout, authenticated DM (admin
// commands, then delivery), group authorization, challenge response, and
// finally a new challenge for an unknown DM.
func (p *ChannelInboundProcessor) HandleInbound(ctx context.Context, msg channel.InboundMessage, sender channel.ReplySender) error {
	if p.engine == nil || p.feed == nil {
		return fmt.Errorf("channel inbound processor not configured")
	}
	if sender == nil {
		return fmt.Errorf("reply sender not configured")
	}
	text := msg.Text()
	if text == "" {
		return nil
	}
	transport := msg.Transport

	if p.engine.IsBlocked(transport, msg.ChatID) {
		return p.reply(ctx, sender, msg, replyLocked(p.engine.BlockTimeRemaining(transport, msg.ChatID)))
	}

	if !msg.IsDM {
		p.engine.RecordChannel(transport, msg.ChatID, msg.ChannelName)
		decision := p.engine.CanRespondTo(msg)
		if !decision.Allowed {
			p.logger.Debug("group message dropped",
				slog.String("transport", transport.String()),
				slog.String("chat_id", msg.ChatID),
				slog.String("reason", string(decision.Reason)),
			)
			return nil
		}
		p.engine.TouchUser(transport, msg.UserID)
		p.deliver(msg)
		return nil
	}

	if p.engine.CanRespondTo(msg).Allowed {
		p.engine.TouchUser(transport, msg.UserID)
		if p.engine.IsTrusted(transport, msg.UserID) {
			if cmd, ok := ParseCommand(text); ok {
				return p.reply(ctx, sender, msg, p.runCommand(ctx, msg, cmd))
			}
		}
		p.deliver(msg)
		return nil
	}

	switch p.engine.ChallengeStatus(transport, msg.ChatID) {
	case trust.ChallengeLive:
		return p.handleChallengeResponse(ctx, msg, sender)
	case trust.ChallengeStale:
		// A late code is answered as expired; anything else starts over.
		if isDigits(text) {
			return p.handleChallengeResponse(ctx, msg, sender)
		}
	}

	_, created, err := p.engine.EnsureChallenge(ctx, transport, msg.ChatID, msg.DisplayName())
	if err != nil {
		return err
	}
	if !created {
		return p.handleChallengeResponse(ctx, msg, sender)
	}
	return p.reply(ctx, sender, msg, replyAuthRequired)
}

func (p *ChannelInboundProcessor) handleChallengeResponse(ctx context.Context, msg channel.InboundMessage, sender channel.ReplySender) error {
	text := msg.Text()
	if !isDigits(text) {
		return nil
	}
	switch len(text) {
	case 5, 7:
		return p.reply(ctx, sender, msg, replyCodeLength)
	case 6:
	default:
		return nil
	}

	res := p.engine.VerifyChallenge(ctx, msg.Transport, msg.ChatID, text, msg.UserID, msg.Username, msg.IsDM)
	switch res.Outcome {
	case trust.OutcomeSuccess:
		return p.reply(ctx, sender, msg, replySuccess)
	case trust.OutcomeExpired:
		return p.reply(ctx, sender, msg, replyExpired)
	case trust.OutcomeBlocked:
		return p.reply(ctx, sender, msg, replyBlocked)
	default:
		return p.reply(ctx, sender, msg, replyWrong(res.Remaining))
	}
}

func (p *ChannelInboundProcessor) deliver(msg channel.InboundMessage) {
	p.feed.Push(msg)
	p.logger.Debug("message queued",
		slog.String("transport", msg.Transport.String()),
		slog.String("chat_id", msg.ChatID),
		slog.String("text", adapterutil.SummarizeText(msg.Content)),
	)
}

func (p *ChannelInboundProcessor) reply(ctx context.Context, sender channel.ReplySender, msg channel.InboundMessage, text string) error {
	err := sender.Send(ctx, channel.OutboundMessage{
		ChatID:    msg.ChatID,
		Text:      text,
		ReplyToID: msg.ID,
	})
	if err != nil {
		p.logger.Error("send reply failed",
			slog.String("transport", msg.Transport.String()),
			slog.String("chat_id", msg.ChatID),
			slog.Any("error", err),
		)
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
