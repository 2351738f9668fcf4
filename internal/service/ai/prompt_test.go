package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/dparedes/motiva/backend/internal/model/chat"
)

func transcript(n int) []chat.Message {
	messages := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		messages = append(messages, chat.Message{Role: role, Content: fmt.Sprintf("msg-%d", i)})
	}
	return messages
}

func TestBuildPromptEntryCount(t *testing.T) {
	a := NewAssembler(10)

	for _, n := range []int{0, 1, 9, 10, 11, 25} {
		prompt := a.BuildPrompt(transcript(n), "next", false)
		want := 1 + min(n, 10) + 1
		if len(prompt) != want {
			t.Fatalf("n=%d: got %d entries, want %d", n, len(prompt), want)
		}
	}
}

func TestBuildPromptWindowKeepsMostRecent(t *testing.T) {
	a := NewAssembler(10)

	// 12 prior messages: only the last 10 may appear, in original order.
	prompt := a.BuildPrompt(transcript(12), "next", false)
	if len(prompt) != 12 {
		t.Fatalf("got %d entries, want 12", len(prompt))
	}

	history := prompt[1 : len(prompt)-1]
	if history[0].Content != "msg-2" {
		t.Fatalf("window start: got %q, want msg-2", history[0].Content)
	}
	if history[len(history)-1].Content != "msg-11" {
		t.Fatalf("window end: got %q, want msg-11", history[len(history)-1].Content)
	}
	for i, msg := range history {
		want := fmt.Sprintf("msg-%d", i+2)
		if msg.Content != want {
			t.Fatalf("history[%d]: got %q, want %q", i, msg.Content, want)
		}
	}
}

func TestBuildPromptRoles(t *testing.T) {
	a := NewAssembler(10)

	history := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello!"},
	}
	prompt := a.BuildPrompt(history, "how are you", false)

	if prompt[0].Role != schema.System {
		t.Fatalf("first entry role: got %s", prompt[0].Role)
	}
	if prompt[1].Role != schema.User || prompt[1].Content != "hi" {
		t.Fatalf("unexpected history[0]: %+v", prompt[1])
	}
	if prompt[2].Role != schema.Assistant || prompt[2].Content != "hello!" {
		t.Fatalf("unexpected history[1]: %+v", prompt[2])
	}
	if last := prompt[len(prompt)-1]; last.Role != schema.User || last.Content != "how are you" {
		t.Fatalf("unexpected new turn: %+v", last)
	}
}

func TestBuildPromptEmptyTranscript(t *testing.T) {
	a := NewAssembler(10)

	prompt := a.BuildPrompt(nil, "first words", false)
	if len(prompt) != 2 {
		t.Fatalf("got %d entries, want 2", len(prompt))
	}
}

func TestBuildPromptAttachmentMarker(t *testing.T) {
	a := NewAssembler(10)

	prompt := a.BuildPrompt(nil, "what is this", true)
	last := prompt[len(prompt)-1]
	if !strings.HasPrefix(last.Content, "[User uploaded an image] ") {
		t.Fatalf("missing attachment marker: %q", last.Content)
	}
	if !strings.HasSuffix(last.Content, "what is this") {
		t.Fatalf("caller text not forwarded: %q", last.Content)
	}

	// A message that merely carries an attachment in history keeps its text
	// verbatim and its normal role.
	history := []chat.Message{{Role: chat.RoleUser, Content: "look", Attachment: "uploads/a.png"}}
	prompt = a.BuildPrompt(history, "next", false)
	if prompt[1].Content != "look" || prompt[1].Role != schema.User {
		t.Fatalf("attachment altered history mapping: %+v", prompt[1])
	}
}
