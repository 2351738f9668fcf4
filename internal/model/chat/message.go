package chat

import "time"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the known authors.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable turn of a conversation. Attachment, when set, is an
// opaque reference to an externally stored image; this service never reads the
// image bytes.
type Message struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Attachment string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"timestamp"`
}

// Empty reports whether the message carries neither text nor an attachment.
func (m Message) Empty() bool {
	return m.Content == "" && m.Attachment == ""
}
