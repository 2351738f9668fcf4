package chat

import "time"

// Session is one persisted conversation thread. An owner may hold any number
// of sessions; messages live in the store, not on the struct.
type Session struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is the listing view of a session.
type Summary struct {
	ChatID       string    `json:"chatId"`
	Title        string    `json:"title"`
	LastMessage  *string   `json:"lastMessage"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

const (
	// DefaultTitle is shown for sessions with no user message yet.
	DefaultTitle = "New Conversation"

	titleLimit   = 30
	previewLimit = 50
)

// TitleFrom derives a listing title from the first user-authored message.
func TitleFrom(firstUserContent string) string {
	if firstUserContent == "" {
		return DefaultTitle
	}
	return truncate(firstUserContent, titleLimit)
}

// PreviewFrom derives the author-prefixed last-message preview shown in
// session listings.
func PreviewFrom(m Message) string {
	prefix := "Bot: "
	if m.Role == RoleUser {
		prefix = "You: "
	}
	return prefix + truncate(m.Content, previewLimit)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
