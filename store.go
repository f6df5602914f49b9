package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound    = errors.New("chat: session not found")
	ErrInvalidSessionID   = errors.New("chat: invalid session id")
	ErrMessageNotFound    = errors.New("chat: message not found")
	ErrUsernameTaken      = errors.New("chat: username already exists")
	ErrUserNotFound       = errors.New("chat: user not found")
	ErrInvalidCredentials = errors.New("chat: invalid credentials")
)

// Store defines the contract for persisting sessions, messages and users.
// Every method is a single unit of work; methods that touch several rows
// (DeleteSession, AddMessage, DeleteMessages) are atomic.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error

	// Sessions
	CreateSession(ctx context.Context, title string) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Messages
	AddMessage(ctx context.Context, msg NewMessage) (*Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	DeleteMessages(ctx context.Context, ids ...int64) (int, error)

	// Users
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	Close() error
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// ValidateSessionID rejects identifiers that are not UUIDs in canonical
// lowercase hyphenated form, the only form sessions are stored under.
func ValidateSessionID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return ErrInvalidSessionID
	}
	return nil
}
