package adapterutil

import (
	"strings"
	"testing"
)

func TestSummarizeText(t *testing.T) {
	t.Parallel()
	if got := SummarizeText("  hi  "); got != "hi" {
		t.Fatalf("unexpected: %q", got)
	}
	long := strings.Repeat("é", 200)
	got := SummarizeText(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != summaryLimit+3 {
		t.Fatalf("unexpected summary length: %d", len([]rune(got)))
	}
}

func TestContainsMention(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text   string
		handle string
		want   bool
	}{
		{"hey @BridgeBot what's up", "bridgebot", true},
		{"@bridgebot", "@BridgeBot", true},
		{"ping @bridgebot_old", "bridgebot", false},
		{"ping @bridgebot_old and @bridgebot.", "bridgebot", true},
		{"no mention", "bridgebot", false},
		{"@bridgebot", "", false},
	}
	for _, tc := range cases {
		if got := ContainsMention(tc.text, tc.handle); got != tc.want {
			t.Fatalf("ContainsMention(%q, %q) = %v", tc.text, tc.handle, got)
		}
	}
}
