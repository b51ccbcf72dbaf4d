package router

import (
	"reflect"
	"testing"

	"github.com/memohai/chatbridge/internal/trust"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text string
		want Command
	}{
		{"enable general", EnableCommand{Ref: "general", Mode: trust.ModeMentions}},
		{"ENABLE #General ALL", EnableCommand{Ref: "General", Mode: trust.ModeAll}},
		{"enable -100 trusted-only", EnableCommand{Ref: "-100", Mode: trust.ModeTrustedOnly}},
		{"  disable   #dev ", DisableCommand{Ref: "dev"}},
		{"channels", ListChannelsCommand{}},
		{"List", ListChannelsCommand{}},
		{"trusted", TrustedCommand{}},
		{"revoke @Bob", RevokeCommand{Target: "@Bob"}},
		{"revoke 12345", RevokeCommand{Target: "12345"}},
		{"help", HelpCommand{}},
	}
	for _, tc := range cases {
		got, ok := ParseCommand(tc.text)
		if !ok {
			t.Fatalf("%q: expected a command", tc.text)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: expected %#v, got %#v", tc.text, tc.want, got)
		}
	}
}

func TestParseCommandRejectsContent(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"",
		"enable",
		"enable general sometimes",
		"enable the lights please",
		"disable",
		"list my tasks",
		"help me write an email",
		"revoke",
		"trusted friends",
		"hello",
	} {
		if cmd, ok := ParseCommand(text); ok {
			t.Fatalf("%q: expected content, got %#v", text, cmd)
		}
	}
}
