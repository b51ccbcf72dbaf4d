package version

import (
	"strings"
	"testing"
)

func TestShortHash(t *testing.T) {
	if got := shortHash("0123456789abcdef"); got != "0123456" {
		t.Fatalf("unexpected short hash %q", got)
	}
	if got := shortHash("abc"); got != "abc" {
		t.Fatalf("unexpected short hash %q", got)
	}
}

func TestDetailsMentionsVersion(t *testing.T) {
	if !strings.Contains(Details(), Version) {
		t.Fatalf("details should include the version: %q", Details())
	}
	if !strings.HasPrefix(GetInfo(), Version) {
		t.Fatalf("info should start with the version: %q", GetInfo())
	}
}
