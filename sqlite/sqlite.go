// Package sqlite implements chat.Store and chat.InteractionSink on a local
// SQLite file. It is the default store for single-node deployments.
package sqlite

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
	"github.com/mattn/go-sqlite3"
	"github.com/meikuraledutech/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT 'New Chat',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL CHECK (role IN ('user', 'model')),
	content    TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'text',
	created_at DATETIME NOT NULL,
	UNIQUE (session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);

CREATE TABLE IF NOT EXISTS chat_users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_interactions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL DEFAULT '',
	capability TEXT NOT NULL DEFAULT '',
	model      TEXT NOT NULL,
	prompt     TEXT NOT NULL,
	response   TEXT NOT NULL,
	has_image  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
`

// Store is a SQLite-backed chat store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path, creating the parent
// directory when needed. The schema is not applied; call CreateSchema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("chat: create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("chat: open sqlite %s: %w", path, err)
	}
	// Single connection: writes are serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("chat: ping sqlite %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates all tables if they do not exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("chat: create sqlite schema: %w", err)
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, title string) (*chat.Session, error) {
	if title == "" {
		title = chat.DefaultTitle
	}
	session := &chat.Session{
		ID:        chat.NewSessionID(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, title, created_at) VALUES (?, ?, ?)`,
		session.ID, session.Title, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("chat: create session: %w", err)
	}

	return session, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*chat.Session, error) {
	session := &chat.Session{ID: sessionID}

	err := s.db.QueryRowContext(ctx,
		`SELECT title, created_at FROM chat_sessions WHERE id = ?`, sessionID,
	).Scan(&session.Title, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: get session: %w", err)
	}

	return session, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]chat.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at FROM chat_sessions ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("chat: list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []chat.Session{}
	for rows.Next() {
		var sess chat.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// DeleteSession removes a session and its messages in one transaction.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("chat: delete session: %w", err)
	}
	return nil
}

// AddMessage appends a message with the next seq and applies the conditional
// retitle in the same transaction.
func (s *Store) AddMessage(ctx context.Context, in chat.NewMessage) (*chat.Message, error) {
	msgType := in.Type
	if msgType == "" {
		msgType = chat.TypeText
	}
	msg := &chat.Message{
		SessionID: in.SessionID,
		Role:      in.Role,
		Content:   in.Content,
		Type:      msgType,
		CreatedAt: time.Now().UTC(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM chat_sessions WHERE id = ?`, in.SessionID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return chat.ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_messages WHERE session_id = ?`, in.SessionID,
		).Scan(&msg.Seq)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (session_id, seq, role, content, type, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			msg.SessionID, msg.Seq, string(msg.Role), msg.Content, msg.Type, msg.CreatedAt,
		)
		if err != nil {
			return err
		}
		if msg.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		if in.Retitle {
			_, err = tx.ExecContext(ctx,
				`UPDATE chat_sessions SET title = ? WHERE id = ? AND title = ?`,
				in.Title, in.SessionID, chat.DefaultTitle,
			)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chat: add message: %w", err)
	}

	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, role, content, type, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}
	defer rows.Close()

	messages := []chat.Message{}
	for rows.Next() {
		var msg chat.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Seq, &role, &msg.Content, &msg.Type, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		msg.Role = chat.Role(role)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}

	return messages, nil
}

// DeleteMessages removes the given messages in one statement.
func (s *Store) DeleteMessages(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("chat: delete messages: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("chat: delete messages: %w", err)
	}
	return int(n), nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*chat.User, error) {
	user := &chat.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, chat.ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("chat: create user: %w", err)
	}

	return user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*chat.User, error) {
	user := &chat.User{Username: username}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash, created_at FROM chat_users WHERE username = ?`, username,
	).Scan(&user.ID, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: get user: %w", err)
	}

	return user, nil
}

// Record stores a completed generation in chat_interactions.
func (s *Store) Record(ctx context.Context, in chat.Interaction) error {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_interactions (session_id, capability, model, prompt, response, has_image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.SessionID, string(in.Capability), in.Model, in.Prompt, in.Response, in.HasImage, ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("chat: record interaction: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

var (
	_ chat.Store           = (*Store)(nil)
	_ chat.InteractionSink = (*Store)(nil)
)
