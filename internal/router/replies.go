package router

import (
	"fmt"
	"strings"

	"github.com/memohai/chatbridge/internal/trust"
)

const (
	replyAuthRequired = "Authentication required. A 6-digit code has been sent to the operator; reply here with that code within 2 minutes."
	replySuccess      = "Authenticated. You are now trusted. Send \"help\" to see admin commands."
	replyExpired      = "That code has expired. Send any message to request a new one."
	replyBlocked      = "Too many failed attempts. This chat is locked for 5 minutes."
	replyCodeLength   = "Codes are exactly 6 digits."
	replyRevokeSelf   = "You cannot revoke your own trust."

	helpText = `Admin commands:
  enable <channel> [all|mentions|trusted-only]  let me answer in a channel (default: mentions)
  disable <channel>                             stop answering in a channel
  channels | list                               show enabled channels
  trusted                                       show trusted users
  revoke <@user|userId>                         remove a user's trust
  help                                          show this message`
)

func replyWrong(remaining int) string {
	return fmt.Sprintf("Incorrect code. %d %s remaining.", remaining, plural(remaining, "attempt", "attempts"))
}

func replyLocked(minutes int) string {
	return fmt.Sprintf("Too many failed attempts. Try again in %d %s.", minutes, plural(minutes, "minute", "minutes"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func describeChannel(id, name string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("#%s (%s)", name, id)
}

func describeUser(user trust.TrustedUser) string {
	if user.Username == "" {
		return user.UserID
	}
	return fmt.Sprintf("@%s (%s)", strings.TrimPrefix(user.Username, "@"), user.UserID)
}

func formatChannels(channels []trust.AuthorizedChannel) string {
	if len(channels) == 0 {
		return "No channels enabled."
	}
	var b strings.Builder
	b.WriteString("Enabled channels:")
	for _, ch := range channels {
		fmt.Fprintf(&b, "\n- %s: %s", describeChannel(ch.ChannelID, ch.ChannelName), ch.Mode)
	}
	return b.String()
}

func formatTrusted(users []trust.TrustedUser) string {
	if len(users) == 0 {
		return "No trusted users."
	}
	var b strings.Builder
	b.WriteString("Trusted users:")
	for _, user := range users {
		fmt.Fprintf(&b, "\n- %s since %s", describeUser(user), user.AuthenticatedAt.UTC().Format("2006-01-02"))
	}
	return b.String()
}
