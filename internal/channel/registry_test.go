package channel

import "testing"

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(&fakeAdapter{transport: "Telegram"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := r.Get("telegram"); !ok {
		t.Fatal("expected adapter lookup to be case-insensitive")
	}
	if err := r.Register(&fakeAdapter{transport: "telegram"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := r.Register(nil); err == nil {
		t.Fatal("expected nil adapter error")
	}
	if err := r.Register(&fakeAdapter{transport: "  "}); err == nil {
		t.Fatal("expected empty type error")
	}
}

func TestRegistryTypesSortedAndUnregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(&fakeAdapter{transport: "slack"})
	r.MustRegister(&fakeAdapter{transport: "discord"})

	types := r.Types()
	if len(types) != 2 || types[0] != "discord" || types[1] != "slack" {
		t.Fatalf("unexpected types: %v", types)
	}
	if !r.Unregister("slack") {
		t.Fatal("expected unregister to succeed")
	}
	if r.Unregister("slack") {
		t.Fatal("expected second unregister to fail")
	}
}

func TestParseType(t *testing.T) {
	t.Parallel()

	got, err := ParseType("  Discord ")
	if err != nil || got != "discord" {
		t.Fatalf("unexpected parse result: %q %v", got, err)
	}
	if _, err := ParseType(""); err == nil {
		t.Fatal("expected error for empty type")
	}
}
