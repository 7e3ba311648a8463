package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// profileKey is the row key for the single user profile in current scope.
const profileKey = "default"

// ErrSessionNotFound is returned when a session id does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session is one logical conversation, bound to one model at a time.
type Session struct {
	ID           string    `json:"id"`
	ModelUsed    string    `json:"model_used"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Message is one persisted conversation message. Content is an opaque
// JSON payload blob (see the chat package for its structure).
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store provides access to sessions, messages, and the user profile.
type Store struct {
	db *sql.DB
}

// NewStore creates a store from an open database connection
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session bound to the given model.
func (s *Store) CreateSession(ctx context.Context, id, model string) (*Session, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, model_used, created_at, last_active_at) VALUES (?, ?, ?, ?)`,
		id, model, now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &Session{ID: id, ModelUsed: model, CreatedAt: now, LastActiveAt: now}, nil
}

// GetSession looks up a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model_used, created_at, last_active_at FROM chat_sessions WHERE id = ?`, id)

	var sess Session
	var created, lastActive int64
	if err := row.Scan(&sess.ID, &sess.ModelUsed, &created, &lastActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	sess.CreatedAt = time.Unix(created, 0)
	sess.LastActiveAt = time.Unix(lastActive, 0)
	return &sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model_used, created_at, last_active_at FROM chat_sessions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var created, lastActive int64
		if err := rows.Scan(&sess.ID, &sess.ModelUsed, &created, &lastActive); err != nil {
			return nil, err
		}
		sess.CreatedAt = time.Unix(created, 0)
		sess.LastActiveAt = time.Unix(lastActive, 0)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// TouchSession stamps the session's last-active timestamp.
func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET last_active_at = ? WHERE id = ?`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateSessionModel rebinds a session to a different model.
func (s *Store) UpdateSessionModel(ctx context.Context, id, model string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET model_used = ? WHERE id = ?`, model, id)
	if err != nil {
		return fmt.Errorf("failed to update session model: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// AppendMessage appends one message to a session's log.
func (s *Store) AppendMessage(ctx context.Context, id, sessionID, role, content string) (*Message, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, sessionID, role, content, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return &Message{ID: id, SessionID: sessionID, Role: role, Content: content, CreatedAt: now}, nil
}

// GetMessages returns a session's messages in creation order.
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var created int64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &created); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.Unix(created, 0)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetProfileJSON returns the user profile JSON, lazily creating the
// default empty profile on first access.
func (s *Store) GetProfileJSON(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT auto_summary_json FROM user_profiles WHERE id = ?`, profileKey)

	var profile string
	err := row.Scan(&profile)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO user_profiles (id, auto_summary_json) VALUES (?, '{}')`, profileKey); err != nil {
			return "", fmt.Errorf("failed to create profile: %w", err)
		}
		return "{}", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// UpdateProfileJSON replaces the user profile JSON.
func (s *Store) UpdateProfileJSON(ctx context.Context, profile string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (id, auto_summary_json) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET auto_summary_json = excluded.auto_summary_json`,
		profileKey, profile,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}
