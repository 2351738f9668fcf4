package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dparedes/motiva/backend/internal/model/chat"
)

var (
	ErrOwnerRequired   = errors.New("owner id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Store persists chat sessions and their messages in SQLite. Each message is
// an independent row, so concurrent appends to one session are plain inserts
// inside their own transactions and can never overwrite each other.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations. The
// special path ":memory:" yields an ephemeral database for tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "mode=memory") {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory %s: %w", dir, err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// In-memory SQLite gives every connection its own database; keep one
	// connection so schema and data stay visible across goroutines.
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			attachment TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession provisions an empty session for the owner.
func (s *Store) CreateSession(ctx context.Context, ownerID string) (chat.Session, error) {
	if strings.TrimSpace(ownerID) == "" {
		return chat.Session{}, ErrOwnerRequired
	}

	now := time.Now().UTC()
	session := chat.Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.OwnerID, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return chat.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	var session chat.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, owner_id, created_at, updated_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.ID, &session.OwnerID, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

// FindOwnerSession returns the session a legacy owner-keyed client addresses:
// the oldest session belonging to the owner.
func (s *Store) FindOwnerSession(ctx context.Context, ownerID string) (chat.Session, error) {
	if strings.TrimSpace(ownerID) == "" {
		return chat.Session{}, ErrOwnerRequired
	}

	var session chat.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, owner_id, created_at, updated_at FROM sessions
		 WHERE owner_id = ? ORDER BY created_at ASC, rowid ASC LIMIT 1`,
		ownerID).Scan(&session.ID, &session.OwnerID, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("select owner session: %w", err)
	}
	return session, nil
}

// GetOrCreateOwnerSession resolves the legacy single-session-per-owner mode,
// creating the session on first use.
func (s *Store) GetOrCreateOwnerSession(ctx context.Context, ownerID string) (chat.Session, error) {
	session, err := s.FindOwnerSession(ctx, ownerID)
	if errors.Is(err, ErrSessionNotFound) {
		return s.CreateSession(ctx, ownerID)
	}
	if err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

// ListMessages returns the session transcript in insertion order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, role, content, attachment, created_at
		 FROM messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, 16)
	for rows.Next() {
		var msg chat.Message
		var attachment sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &attachment, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if attachment.Valid {
			msg.Attachment = attachment.String
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// AppendMessage durably appends one message to a session and advances the
// session's updated_at, in a single transaction.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}

	msg.ID = uuid.NewString()
	msg.SessionID = sessionID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var attachment any
	if msg.Attachment != "" {
		attachment = msg.Attachment
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, role, content, attachment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, attachment, msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_id = ?`,
		time.Now().UTC(), sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// ClearMessages empties a session's transcript while preserving the session
// itself, its owner and its creation time.
func (s *Store) ClearMessages(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_id = ?`,
		time.Now().UTC(), sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// DeleteSession removes a session and its messages. Deleting a session that
// does not exist is a no-op, not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// ListSessions summarizes every session belonging to the owner, most recently
// updated first.
func (s *Store) ListSessions(ctx context.Context, ownerID string) ([]chat.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, updated_at FROM sessions WHERE owner_id = ? ORDER BY updated_at DESC, rowid ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()

	summaries := make([]chat.Summary, 0, 8)
	for rows.Next() {
		var summary chat.Summary
		if err := rows.Scan(&summary.ChatID, &summary.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	for i := range summaries {
		if err := s.fillSummary(ctx, &summaries[i]); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (s *Store) fillSummary(ctx context.Context, summary *chat.Summary) error {
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`,
		summary.ChatID).Scan(&summary.MessageCount); err != nil {
		return fmt.Errorf("count messages: %w", err)
	}

	var firstUser string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM messages WHERE session_id = ? AND role = ?
		 ORDER BY created_at ASC, rowid ASC LIMIT 1`,
		summary.ChatID, string(chat.RoleUser)).Scan(&firstUser)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("select first user message: %w", err)
	}
	summary.Title = chat.TitleFrom(firstUser)

	var last chat.Message
	err = s.db.QueryRowContext(ctx,
		`SELECT role, content FROM messages WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		summary.ChatID).Scan(&last.Role, &last.Content)
	if errors.Is(err, sql.ErrNoRows) {
		summary.LastMessage = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("select last message: %w", err)
	}
	preview := chat.PreviewFrom(last)
	summary.LastMessage = &preview
	return nil
}
