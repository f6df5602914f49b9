// Package firestore implements chat.Store and chat.InteractionSink on Cloud
// Firestore.
//
// Layout:
//
//	sessions/{session_id}      title, created_at, last_seq
//	messages/{%020d id}        session_id, id, seq, role, content, type, created_at
//	counters/messages          last_id
//	users/{username}           id, password_hash, created_at
//	interactions/{auto}        one document per completed generation
//
// Message ids come from a single counter document so they increase with
// arrival order across all sessions.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/meikuraledutech/chat"
)

// maxTxAttempts bounds retries of contended transactions on the message counter.
const maxTxAttempts = 25

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for projectID. When
// FIRESTORE_EMULATOR_HOST is set the client talks to the emulator.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, errors.New("chat: FIRESTORE_PROJECT is required for the firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("chat: create firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// New wraps an existing client.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// CreateSchema is a no-op; Firestore collections are created on first write.
func (s *Store) CreateSchema(context.Context) error { return nil }

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) messagesCol() *firestore.CollectionRef {
	return s.client.Collection("messages")
}

func (s *Store) messageDoc(id int64) *firestore.DocumentRef {
	return s.messagesCol().Doc(fmt.Sprintf("%020d", id))
}

func (s *Store) counterDoc() *firestore.DocumentRef {
	return s.client.Collection("counters").Doc("messages")
}

func (s *Store) userDoc(username string) *firestore.DocumentRef {
	return s.client.Collection("users").Doc(username)
}

type sessionDoc struct {
	Title     string    `firestore:"title"`
	CreatedAt time.Time `firestore:"created_at"`
	LastSeq   int       `firestore:"last_seq"`
}

type messageDoc struct {
	SessionID string    `firestore:"session_id"`
	ID        int64     `firestore:"id"`
	Seq       int       `firestore:"seq"`
	Role      string    `firestore:"role"`
	Content   string    `firestore:"content"`
	Type      string    `firestore:"type"`
	CreatedAt time.Time `firestore:"created_at"`
}

type counterDoc struct {
	LastID int64 `firestore:"last_id"`
}

type userDoc struct {
	ID           string    `firestore:"id"`
	PasswordHash string    `firestore:"password_hash"`
	CreatedAt    time.Time `firestore:"created_at"`
}

type interactionDoc struct {
	SessionID  string    `firestore:"session_id"`
	Capability string    `firestore:"capability"`
	Model      string    `firestore:"model"`
	Prompt     string    `firestore:"prompt"`
	Response   string    `firestore:"response"`
	HasImage   bool      `firestore:"has_image"`
	CreatedAt  time.Time `firestore:"created_at"`
}

func (d messageDoc) toMessage() chat.Message {
	return chat.Message{
		ID:        d.ID,
		SessionID: d.SessionID,
		Seq:       d.Seq,
		Role:      chat.Role(d.Role),
		Content:   d.Content,
		Type:      d.Type,
		CreatedAt: d.CreatedAt,
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
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

	_, err := s.sessionsCol().Doc(session.ID).Create(ctx, sessionDoc{
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: firestore create session: %w", err)
	}

	return session, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*chat.Session, error) {
	snap, err := s.sessionsCol().Doc(sessionID).Get(ctx)
	if isNotFound(err) {
		return nil, chat.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: firestore get session: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("chat: firestore decode session: %w", err)
	}

	return &chat.Session{ID: sessionID, Title: doc.Title, CreatedAt: doc.CreatedAt}, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]chat.Session, error) {
	iter := s.sessionsCol().OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	sessions := []chat.Session{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("chat: firestore list sessions: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("chat: firestore decode session: %w", err)
		}
		sessions = append(sessions, chat.Session{ID: snap.Ref.ID, Title: doc.Title, CreatedAt: doc.CreatedAt})
	}

	return sessions, nil
}

// DeleteSession removes the session document and its messages in one
// transaction.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	ref := s.sessionsCol().Doc(sessionID)
	q := s.messagesCol().Where("session_id", "==", sessionID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(q).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			if err := tx.Delete(snap.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return fmt.Errorf("chat: firestore delete session: %w", err)
	}
	return nil
}

// AddMessage allocates the next global id and per-session seq and writes the
// message inside one transaction.
func (s *Store) AddMessage(ctx context.Context, in chat.NewMessage) (*chat.Message, error) {
	msgType := in.Type
	if msgType == "" {
		msgType = chat.TypeText
	}
	sessionRef := s.sessionsCol().Doc(in.SessionID)
	counterRef := s.counterDoc()

	var out chat.Message
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		sessSnap, err := tx.Get(sessionRef)
		if isNotFound(err) {
			return chat.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var sess sessionDoc
		if err := sessSnap.DataTo(&sess); err != nil {
			return err
		}

		var counter counterDoc
		counterSnap, err := tx.Get(counterRef)
		switch {
		case isNotFound(err):
		case err != nil:
			return err
		default:
			if err := counterSnap.DataTo(&counter); err != nil {
				return err
			}
		}

		doc := messageDoc{
			SessionID: in.SessionID,
			ID:        counter.LastID + 1,
			Seq:       sess.LastSeq + 1,
			Role:      string(in.Role),
			Content:   in.Content,
			Type:      msgType,
			CreatedAt: time.Now().UTC(),
		}

		if err := tx.Set(counterRef, counterDoc{LastID: doc.ID}); err != nil {
			return err
		}
		if err := tx.Create(s.messageDoc(doc.ID), doc); err != nil {
			return err
		}

		updates := []firestore.Update{{Path: "last_seq", Value: doc.Seq}}
		if in.Retitle && sess.Title == chat.DefaultTitle {
			updates = append(updates, firestore.Update{Path: "title", Value: in.Title})
		}
		if err := tx.Update(sessionRef, updates); err != nil {
			return err
		}

		out = doc.toMessage()
		return nil
	}, firestore.MaxAttempts(maxTxAttempts))
	if err != nil {
		return nil, fmt.Errorf("chat: firestore add message: %w", err)
	}

	return &out, nil
}

// ListMessages returns a session's messages ordered by id. The query filters
// on session_id only and sorts client side.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	iter := s.messagesCol().Where("session_id", "==", sessionID).Documents(ctx)
	defer iter.Stop()

	messages := []chat.Message{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("chat: firestore list messages: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("chat: firestore decode message: %w", err)
		}
		messages = append(messages, doc.toMessage())
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })
	return messages, nil
}

// DeleteMessages removes the given messages in one transaction and reports
// how many existed.
func (s *Store) DeleteMessages(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = 0

		refs := make([]*firestore.DocumentRef, 0, len(ids))
		for _, id := range ids {
			refs = append(refs, s.messageDoc(id))
		}
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return err
		}

		for _, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			if err := tx.Delete(snap.Ref); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("chat: firestore delete messages: %w", err)
	}

	return deleted, nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*chat.User, error) {
	user := &chat.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.userDoc(username).Create(ctx, userDoc{
		ID:           user.ID,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return nil, chat.ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("chat: firestore create user: %w", err)
	}

	return user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*chat.User, error) {
	snap, err := s.userDoc(username).Get(ctx)
	if isNotFound(err) {
		return nil, chat.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: firestore get user: %w", err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("chat: firestore decode user: %w", err)
	}

	return &chat.User{
		ID:           doc.ID,
		Username:     username,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// Record stores a completed generation in the interactions collection.
func (s *Store) Record(ctx context.Context, in chat.Interaction) error {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, _, err := s.client.Collection("interactions").Add(ctx, interactionDoc{
		SessionID:  in.SessionID,
		Capability: string(in.Capability),
		Model:      in.Model,
		Prompt:     in.Prompt,
		Response:   in.Response,
		HasImage:   in.HasImage,
		CreatedAt:  ts.UTC(),
	})
	if err != nil {
		return fmt.Errorf("chat: firestore record interaction: %w", err)
	}
	return nil
}

var (
	_ chat.Store           = (*Store)(nil)
	_ chat.InteractionSink = (*Store)(nil)
)
