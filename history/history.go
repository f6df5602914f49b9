// Package history owns the ordering of a session's message log: appends,
// auto-titling, listing and undoing the last turn.
package history

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/meikuraledutech/chat"
)

// Manager wraps a chat.Store with session id validation and the undo policy.
type Manager struct {
	store  chat.Store
	logger *zap.Logger
}

// New returns a Manager over store. A nil logger is replaced with a no-op.
func New(store chat.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// CreateSession creates a session; an empty title becomes chat.DefaultTitle.
func (m *Manager) CreateSession(ctx context.Context, title string) (*chat.Session, error) {
	sess, err := m.store.CreateSession(ctx, title)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("session created", zap.String("session_id", sess.ID), zap.String("title", sess.Title))
	return sess, nil
}

// ListSessions returns every session, newest first.
func (m *Manager) ListSessions(ctx context.Context) ([]chat.Session, error) {
	return m.store.ListSessions(ctx)
}

func (m *Manager) GetSession(ctx context.Context, sessionID string) (*chat.Session, error) {
	if err := chat.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	return m.store.GetSession(ctx, sessionID)
}

// DeleteSession removes the session and its messages. Unknown ids are a no-op.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := chat.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	m.logger.Debug("session deleted", zap.String("session_id", sessionID))
	return nil
}

// AppendMessage adds a message at the end of the session's log. A user
// message renames a session still titled chat.DefaultTitle.
func (m *Manager) AppendMessage(ctx context.Context, sessionID string, role chat.Role, content, msgType string) (*chat.Message, error) {
	if err := chat.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("chat: unknown role %q", role)
	}

	in := chat.NewMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Type:      msgType,
	}
	if role == chat.RoleUser {
		in.Retitle = true
		in.Title = chat.AutoTitle(content)
	}

	return m.store.AddMessage(ctx, in)
}

// ListMessages returns the session's messages in arrival order. An unknown
// session yields an empty slice.
func (m *Manager) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if err := chat.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	return m.store.ListMessages(ctx, sessionID)
}

// DeleteMessage removes a single message.
func (m *Manager) DeleteMessage(ctx context.Context, messageID int64) error {
	n, err := m.store.DeleteMessages(ctx, messageID)
	if err != nil {
		return err
	}
	if n == 0 {
		return chat.ErrMessageNotFound
	}
	return nil
}

// UndoLastTurn removes the last turn of a session and reports how many
// messages were deleted (0, 1 or 2).
//
// Only the last two messages are consulted. A trailing model reply is removed
// together with the user message right before it; a trailing user message
// with no reply is removed alone. Both deletions happen in one store call.
func (m *Manager) UndoLastTurn(ctx context.Context, sessionID string) (int, error) {
	msgs, err := m.ListMessages(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	ids := lastTurn(msgs)
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := m.store.DeleteMessages(ctx, ids...)
	if err != nil {
		return 0, err
	}

	m.logger.Debug("undo last turn",
		zap.String("session_id", sessionID),
		zap.Int64s("message_ids", ids),
		zap.Int("deleted", n),
	)
	return n, nil
}

// lastTurn returns the ids of the messages that make up the final turn.
func lastTurn(msgs []chat.Message) []int64 {
	if len(msgs) == 0 {
		return nil
	}

	last := msgs[len(msgs)-1]
	if last.Role != chat.RoleModel {
		return []int64{last.ID}
	}

	ids := []int64{last.ID}
	if len(msgs) >= 2 && msgs[len(msgs)-2].Role == chat.RoleUser {
		ids = append(ids, msgs[len(msgs)-2].ID)
	}
	return ids
}
