// Package memory is an in-process chat.Store. It is not persistent and is
// meant for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/chat"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	messages map[string][]chat.Message
	users    map[string]*chat.User
	lastID   int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		sessions: make(map[string]*chat.Session),
		messages: make(map[string][]chat.Message),
		users:    make(map[string]*chat.User),
		now:      time.Now,
	}
}

func (s *Store) CreateSchema(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateSession(_ context.Context, title string) (*chat.Session, error) {
	if title == "" {
		title = chat.DefaultTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &chat.Session{
		ID:        chat.NewSessionID(),
		Title:     title,
		CreatedAt: s.now().UTC(),
	}
	s.sessions[sess.ID] = sess

	out := *sess
	return &out, nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (*chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, chat.ErrSessionNotFound
	}

	out := *sess
	return &out, nil
}

func (s *Store) ListSessions(context.Context) ([]chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, sessionID)
	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) AddMessage(_ context.Context, in chat.NewMessage) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[in.SessionID]
	if !ok {
		return nil, chat.ErrSessionNotFound
	}

	msgType := in.Type
	if msgType == "" {
		msgType = chat.TypeText
	}

	log := s.messages[in.SessionID]
	seq := 1
	if n := len(log); n > 0 {
		seq = log[n-1].Seq + 1
	}

	s.lastID++
	msg := chat.Message{
		ID:        s.lastID,
		SessionID: in.SessionID,
		Seq:       seq,
		Role:      in.Role,
		Content:   in.Content,
		Type:      msgType,
		CreatedAt: s.now().UTC(),
	}
	s.messages[in.SessionID] = append(log, msg)

	if in.Retitle && sess.Title == chat.DefaultTitle {
		sess.Title = in.Title
	}

	return &msg, nil
}

func (s *Store) ListMessages(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[sessionID]
	out := make([]chat.Message, len(log))
	copy(out, log)
	return out, nil
}

func (s *Store) DeleteMessages(_ context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for sessionID, log := range s.messages {
		kept := log[:0]
		for _, m := range log {
			if _, ok := drop[m.ID]; ok {
				deleted++
				continue
			}
			kept = append(kept, m)
		}
		s.messages[sessionID] = kept
	}

	return deleted, nil
}

func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (*chat.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, chat.ErrUsernameTaken
	}

	user := &chat.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	s.users[username] = user

	out := *user
	return &out, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*chat.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, chat.ErrUserNotFound
	}

	out := *user
	return &out, nil
}

var _ chat.Store = (*Store)(nil)
