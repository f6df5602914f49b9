package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/meikuraledutech/chat"
)

// Record stores a completed generation in chat_interactions.
func (s *PGStore) Record(ctx context.Context, in chat.Interaction) error {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_interactions (
			session_id, capability, model, prompt, response, has_image, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		in.SessionID, string(in.Capability), in.Model, in.Prompt, in.Response, in.HasImage, ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("chat: record interaction: %w", err)
	}
	return nil
}

// Interactions returns the most recent interactions, newest first.
func (s *PGStore) Interactions(ctx context.Context, limit int) ([]chat.Interaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
		SELECT session_id, capability, model, prompt, response, has_image, created_at
		FROM chat_interactions
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list interactions: %w", err)
	}
	defer rows.Close()

	var out []chat.Interaction
	for rows.Next() {
		var in chat.Interaction
		var capability string
		if err := rows.Scan(&in.SessionID, &capability, &in.Model, &in.Prompt, &in.Response, &in.HasImage, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("chat: scan interaction: %w", err)
		}
		in.Capability = chat.Capability(capability)
		out = append(out, in)
	}

	return out, rows.Err()
}
