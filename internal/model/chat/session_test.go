package chat

import (
	"strings"
	"testing"
)

func TestTitleFrom(t *testing.T) {
	if got := TitleFrom(""); got != DefaultTitle {
		t.Fatalf("empty content: got %q", got)
	}
	if got := TitleFrom("hi"); got != "hi" {
		t.Fatalf("short content: got %q", got)
	}

	long := strings.Repeat("a", 40)
	got := TitleFrom(long)
	want := strings.Repeat("a", 30) + "..."
	if got != want {
		t.Fatalf("long content: got %q want %q", got, want)
	}
}

func TestPreviewFrom(t *testing.T) {
	if got := PreviewFrom(Message{Role: RoleAssistant, Content: "hello!"}); got != "Bot: hello!" {
		t.Fatalf("assistant preview: got %q", got)
	}
	if got := PreviewFrom(Message{Role: RoleUser, Content: "hi"}); got != "You: hi" {
		t.Fatalf("user preview: got %q", got)
	}

	long := strings.Repeat("b", 60)
	got := PreviewFrom(Message{Role: RoleUser, Content: long})
	want := "You: " + strings.Repeat("b", 50) + "..."
	if got != want {
		t.Fatalf("long preview: got %q want %q", got, want)
	}
}

func TestNewAddress(t *testing.T) {
	if _, err := NewAddress("  ", ""); err != ErrNoAddress {
		t.Fatalf("expected ErrNoAddress, got %v", err)
	}

	addr, err := NewAddress("s1", "u1")
	if err != nil {
		t.Fatalf("NewAddress err: %v", err)
	}
	if !addr.BySession() {
		t.Fatal("session id should take precedence")
	}

	addr, err = NewAddress("", "u1")
	if err != nil {
		t.Fatalf("NewAddress err: %v", err)
	}
	if addr.BySession() {
		t.Fatal("owner-only address must not resolve by session")
	}
}
