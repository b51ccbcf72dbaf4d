package router

import (
	"strings"

	"github.com/memohai/chatbridge/internal/trust"
)

// Command is one parsed admin command. The set of implementations is closed.
type Command interface {
	command()
}

// EnableCommand authorizes a channel. Ref is a cached channel name or a literal ID.
type EnableCommand struct {
	Ref  string
	Mode trust.Mode
}

// DisableCommand revokes a channel authorization.
type DisableCommand struct {
	Ref string
}

// ListChannelsCommand lists authorized channels.
type ListChannelsCommand struct{}

// TrustedCommand lists trusted users.
type TrustedCommand struct{}

// RevokeCommand untrusts a user given as "@username" or a raw user ID.
type RevokeCommand struct {
	Target string
}

// HelpCommand lists the available commands.
type HelpCommand struct{}

func (EnableCommand) command()       {}
func (DisableCommand) command()      {}
func (ListChannelsCommand) command() {}
func (TrustedCommand) command()      {}
func (RevokeCommand) command()       {}
func (HelpCommand) command()         {}

// ParseCommand reads an admin command from text. Verbs and modes are
// case-insensitive; arguments keep their case. Text with the wrong arity or
// an unknown mode is not a command.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, false
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "enable":
		switch len(args) {
		case 1:
			return EnableCommand{Ref: channelRef(args[0]), Mode: trust.DefaultMode}, true
		case 2:
			mode, ok := trust.ParseMode(args[1])
			if !ok {
				return nil, false
			}
			return EnableCommand{Ref: channelRef(args[0]), Mode: mode}, true
		}
	case "disable":
		if len(args) == 1 {
			return DisableCommand{Ref: channelRef(args[0])}, true
		}
	case "channels", "list":
		if len(args) == 0 {
			return ListChannelsCommand{}, true
		}
	case "trusted":
		if len(args) == 0 {
			return TrustedCommand{}, true
		}
	case "revoke":
		if len(args) == 1 {
			return RevokeCommand{Target: args[0]}, true
		}
	case "help":
		if len(args) == 0 {
			return HelpCommand{}, true
		}
	}
	return nil, false
}

func channelRef(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "#")
}
