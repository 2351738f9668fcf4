package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dparedes/motiva/backend/internal/model/chat"
	"github.com/dparedes/motiva/backend/internal/service/ai"
	"github.com/dparedes/motiva/backend/internal/store"
)

var (
	ErrUpstream           = errors.New("completion upstream failed")
	ErrCompletionDisabled = errors.New("completion service not configured")
	ErrEmptyMessage       = errors.New("message text or attachment is required")
	ErrInvalidRole        = errors.New("unknown message role")
)

// persistGrace is how long appends may keep running after the requesting
// client has gone away. A generated reply is worth persisting regardless of
// whether anyone is still waiting for it.
const persistGrace = 10 * time.Second

// Completer is the external completion boundary: an assembled prompt in,
// reply text or an error out.
type Completer interface {
	Complete(ctx context.Context, prompt []*schema.Message) (string, error)
}

// Service owns conversation state management: session CRUD, the dual
// addressing shim, and the submit-turn flow.
type Service struct {
	store     *store.Store
	assembler *ai.Assembler
	completer Completer
	timeout   time.Duration
}

// NewService wires the chat service. completer may be nil, in which case turn
// submission reports ErrCompletionDisabled while everything else keeps working.
func NewService(st *store.Store, assembler *ai.Assembler, completer Completer, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		store:     st,
		assembler: assembler,
		completer: completer,
		timeout:   timeout,
	}
}

// CreateSession provisions a fresh, empty session for the owner.
func (s *Service) CreateSession(ctx context.Context, ownerID string) (chat.Session, error) {
	return s.store.CreateSession(ctx, ownerID)
}

// ListSessions summarizes the owner's sessions.
func (s *Service) ListSessions(ctx context.Context, ownerID string) ([]chat.Summary, error) {
	return s.store.ListSessions(ctx, ownerID)
}

// Transcript returns a session's messages in conversation order.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return s.store.ListMessages(ctx, sessionID)
}

// AppendMessage validates and durably appends one message.
func (s *Service) AppendMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	if !msg.Role.Valid() {
		return ErrInvalidRole
	}
	if msg.Empty() {
		return ErrEmptyMessage
	}
	return s.store.AppendMessage(ctx, sessionID, msg)
}

// ClearSession empties a session's transcript.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	return s.store.ClearMessages(ctx, sessionID)
}

// DeleteSession removes a session; deleting an absent session succeeds.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

// LegacyTranscript returns the transcript of an owner's legacy session, or an
// empty list when the owner has no session yet. Reading never creates one.
func (s *Service) LegacyTranscript(ctx context.Context, ownerID string) ([]chat.Message, error) {
	session, err := s.store.FindOwnerSession(ctx, ownerID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return []chat.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, session.ID)
}

// DeleteLegacySession removes an owner's legacy session. Idempotent.
func (s *Service) DeleteLegacySession(ctx context.Context, ownerID string) error {
	session, err := s.store.FindOwnerSession(ctx, ownerID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.DeleteSession(ctx, session.ID)
}

// Resolve maps an address to its target session. Explicit session ids resolve
// via lookup and never create; owner-keyed addresses fall back to the legacy
// single-session mode, creating the session on first use.
func (s *Service) Resolve(ctx context.Context, addr chat.Address) (chat.Session, error) {
	if addr.BySession() {
		return s.store.GetSession(ctx, addr.SessionID)
	}
	return s.store.GetOrCreateOwnerSession(ctx, addr.OwnerID)
}

// SubmitTurn runs one full conversation turn: resolve the target session,
// assemble the bounded prompt from the pre-turn transcript, call the
// completion boundary, then persist the user message and the reply in that
// order. When the upstream call fails nothing is appended and no reply is
// fabricated.
func (s *Service) SubmitTurn(ctx context.Context, addr chat.Address, text, attachment string) (string, error) {
	if s.completer == nil {
		return "", ErrCompletionDisabled
	}
	if text == "" && attachment == "" {
		return "", ErrEmptyMessage
	}

	session, err := s.Resolve(ctx, addr)
	if err != nil {
		return "", err
	}

	history, err := s.store.ListMessages(ctx, session.ID)
	if err != nil {
		return "", err
	}

	prompt := s.assembler.BuildPrompt(history, text, attachment != "")

	upstreamCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.completer.Complete(upstreamCtx, prompt)
	if err != nil {
		log.Printf("[turn] completion failed for session=%s: %v", session.ID, err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// Persist on a context detached from the request: a caller abandoning
	// the turn must not lose the exchange.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistGrace)
	defer cancelPersist()

	userMsg := chat.Message{Role: chat.RoleUser, Content: text, Attachment: attachment}
	if err := s.store.AppendMessage(persistCtx, session.ID, userMsg); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}

	botMsg := chat.Message{Role: chat.RoleAssistant, Content: reply}
	if err := s.store.AppendMessage(persistCtx, session.ID, botMsg); err != nil {
		return "", fmt.Errorf("persist assistant reply: %w", err)
	}

	return reply, nil
}
