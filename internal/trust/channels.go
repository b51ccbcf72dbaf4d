package trust

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/memohai/chatbridge/internal/channel"
)

// AuthorizeChannel lets the bot answer in a group channel. It fails unless
// byUserID is trusted on transport. Re-authorizing replaces the mode.
func (e *Engine) AuthorizeChannel(ctx context.Context, transport channel.Type, channelID, byUserID, name string, mode Mode) bool {
	chKey := NewKey(transport, channelID)
	byKey := NewKey(transport, byUserID)
	if chKey.ID == "" {
		return false
	}
	if _, ok := ParseMode(string(mode)); !ok {
		mode = DefaultMode
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.trusted[byKey]; !ok {
		return false
	}
	e.channels[chKey] = &AuthorizedChannel{
		Transport:    transport,
		ChannelID:    chKey.ID,
		ChannelName:  strings.TrimSpace(name),
		AuthorizedBy: byKey.String(),
		AuthorizedAt: e.now(),
		Mode:         mode,
	}
	e.logger.InfoContext(ctx, "channel authorized",
		slog.String("channel", chKey.String()),
		slog.String("mode", string(mode)),
		slog.String("by", byKey.String()),
	)
	return true
}

// RevokeChannel removes a channel authorization. Any trusted user may revoke any channel.
func (e *Engine) RevokeChannel(transport channel.Type, channelID, byUserID string) bool {
	chKey := NewKey(transport, channelID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.trusted[NewKey(transport, byUserID)]; !ok {
		return false
	}
	if _, ok := e.channels[chKey]; !ok {
		return false
	}
	delete(e.channels, chKey)
	e.logger.Info("channel revoked", slog.String("channel", chKey.String()))
	return true
}

// AuthorizedChannel returns the authorization record for a channel.
func (e *Engine) AuthorizedChannel(transport channel.Type, channelID string) (AuthorizedChannel, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.channels[NewKey(transport, channelID)]
	if !ok {
		return AuthorizedChannel{}, false
	}
	return *ch, true
}

// AuthorizedChannels returns a sorted copy of every authorized channel.
func (e *Engine) AuthorizedChannels() []AuthorizedChannel {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]AuthorizedChannel, 0, len(e.channels))
	for _, ch := range e.channels {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Transport != out[j].Transport {
			return out[i].Transport < out[j].Transport
		}
		return out[i].ChannelID < out[j].ChannelID
	})
	return out
}

// RecordChannel caches a channel name seen in group traffic.
func (e *Engine) RecordChannel(transport channel.Type, channelID, name string) {
	name = strings.TrimSpace(name)
	channelID = strings.TrimSpace(channelID)
	if name == "" || channelID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen[Key{Transport: transport, ID: strings.ToLower(name)}] = SeenChannel{
		ChannelID:   channelID,
		ChannelName: name,
	}
}

// FindChannelByName resolves a typed channel name on transport: an exact
// case-insensitive match first, then the first cached name containing it.
func (e *Engine) FindChannelByName(transport channel.Type, name string) (SeenChannel, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return SeenChannel{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, ok := e.seen[Key{Transport: transport, ID: needle}]; ok {
		return ch, true
	}
	names := make([]string, 0, len(e.seen))
	for key := range e.seen {
		if key.Transport == transport {
			names = append(names, key.ID)
		}
	}
	sort.Strings(names)
	for _, candidate := range names {
		if strings.Contains(candidate, needle) {
			return e.seen[Key{Transport: transport, ID: candidate}], true
		}
	}
	return SeenChannel{}, false
}
