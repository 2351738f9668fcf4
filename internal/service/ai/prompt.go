package ai

import (
	"github.com/cloudwego/eino/schema"

	"github.com/dparedes/motiva/backend/internal/model/chat"
)

// DefaultHistoryLimit bounds how many prior turns are forwarded to the model.
// Older messages are dropped outright, never summarized.
const DefaultHistoryLimit = 10

// attachmentMarker is prepended to the new turn's text when the user supplied
// an image, so the model sees textual evidence of it; the image itself is
// never forwarded.
const attachmentMarker = "[User uploaded an image] "

const systemPreamble = "You are a motivational speaker and should provide a motivational response to the user. " +
	"If the user emotions are in unstable state, you should provide a motivational response and suggest a best song to motivate them. " +
	"For greetings like hi and hello, respond with friendly greetings."

// Assembler derives the bounded, role-tagged prompt for a completion call.
type Assembler struct {
	historyLimit int
}

// NewAssembler creates an assembler with the given history bound; values
// below 1 fall back to DefaultHistoryLimit.
func NewAssembler(historyLimit int) *Assembler {
	if historyLimit < 1 {
		historyLimit = DefaultHistoryLimit
	}
	return &Assembler{historyLimit: historyLimit}
}

// BuildPrompt maps a session transcript plus the turn being submitted into the
// message sequence sent upstream: system preamble, the trailing historyLimit
// messages in original order, then the new user turn. The transcript must be
// the session state before this turn. Total over any input, including an
// empty transcript.
func (a *Assembler) BuildPrompt(history []chat.Message, text string, hasAttachment bool) []*schema.Message {
	prompt := make([]*schema.Message, 0, a.historyLimit+2)
	prompt = append(prompt, schema.SystemMessage(systemPreamble))

	startIdx := 0
	if len(history) > a.historyLimit {
		startIdx = len(history) - a.historyLimit
	}
	for _, msg := range history[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			prompt = append(prompt, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			prompt = append(prompt, schema.AssistantMessage(msg.Content, nil))
		}
	}

	query := text
	if hasAttachment {
		query = attachmentMarker + text
	}
	return append(prompt, schema.UserMessage(query))
}
