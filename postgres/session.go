package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/chat"
)

// CreateSession creates a new session with the given title.
func (s *PGStore) CreateSession(ctx context.Context, title string) (*chat.Session, error) {
	if title == "" {
		title = chat.DefaultTitle
	}
	session := &chat.Session{
		ID:        chat.NewSessionID(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_sessions (id, title, created_at) VALUES ($1, $2, $3)`,
		session.ID, session.Title, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("chat: create session: %w", err)
	}

	return session, nil
}

// GetSession retrieves a session by ID.
func (s *PGStore) GetSession(ctx context.Context, sessionID string) (*chat.Session, error) {
	session := &chat.Session{ID: sessionID}

	err := s.db.QueryRow(ctx,
		`SELECT title, created_at FROM chat_sessions WHERE id = $1`,
		sessionID,
	).Scan(&session.Title, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: get session: %w", err)
	}

	return session, nil
}

// ListSessions returns all sessions, newest first.
func (s *PGStore) ListSessions(ctx context.Context) ([]chat.Session, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, created_at FROM chat_sessions ORDER BY created_at DESC, id DESC`,
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

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: list sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session and all of its messages in one transaction.
// Deleting an unknown session is not an error.
func (s *PGStore) DeleteSession(ctx context.Context, sessionID string) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, sessionID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("chat: delete session: %w", err)
	}
	return nil
}
