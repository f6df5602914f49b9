// Package postgres implements chat.Store and chat.InteractionSink on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/chat"
)

// PGStore persists sessions, messages, users and interactions in PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

// New wraps an existing pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// Open connects to databaseURL and returns a store owning the pool.
func Open(ctx context.Context, databaseURL string) (*PGStore, error) {
	if databaseURL == "" {
		return nil, errors.New("chat: DATABASE_URL is required for the postgres store")
	}
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("chat: connect postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("chat: ping postgres: %w", err)
	}
	return New(db), nil
}

// Close releases the pool.
func (s *PGStore) Close() error {
	s.db.Close()
	return nil
}

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Ensure PGStore implements the chat contracts at compile time.
var (
	_ chat.Store           = (*PGStore)(nil)
	_ chat.InteractionSink = (*PGStore)(nil)
)
