package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/chat"
)

// CreateUser inserts a user. A duplicate username yields chat.ErrUsernameTaken.
func (s *PGStore) CreateUser(ctx context.Context, username, passwordHash string) (*chat.User, error) {
	user := &chat.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
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

func (s *PGStore) GetUserByUsername(ctx context.Context, username string) (*chat.User, error) {
	user := &chat.User{Username: username}

	err := s.db.QueryRow(ctx,
		`SELECT id, password_hash, created_at FROM chat_users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: get user: %w", err)
	}

	return user, nil
}
