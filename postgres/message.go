package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/chat"
)

// AddMessage appends a message to a session with auto-incremented seq.
// The session row is locked for the duration of the insert, so appends to the
// same session are serialized and seq order matches id order.
func (s *PGStore) AddMessage(ctx context.Context, in chat.NewMessage) (*chat.Message, error) {
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

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx,
			`SELECT id FROM chat_sessions WHERE id = $1 FOR UPDATE`, in.SessionID,
		).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO chat_messages (session_id, seq, role, content, type, created_at)
			 VALUES ($1, COALESCE((SELECT MAX(seq) FROM chat_messages WHERE session_id = $1), 0) + 1, $2, $3, $4, $5)
			 RETURNING id, seq`,
			msg.SessionID, string(msg.Role), msg.Content, msg.Type, msg.CreatedAt,
		).Scan(&msg.ID, &msg.Seq)
		if err != nil {
			return err
		}

		if in.Retitle {
			_, err = tx.Exec(ctx,
				`UPDATE chat_sessions SET title = $1 WHERE id = $2 AND title = $3`,
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

// ListMessages returns all messages for a session ordered by id.
func (s *PGStore) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, seq, role, content, type, created_at
		 FROM chat_messages WHERE session_id = $1 ORDER BY id ASC`,
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

		err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Seq, &role, &msg.Content, &msg.Type, &msg.CreatedAt)
		if err != nil {
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

// DeleteMessages removes the given messages in a single statement and reports
// how many existed.
func (s *PGStore) DeleteMessages(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM chat_messages WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("chat: delete messages: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
