// Package storetest holds behaviour tests shared by every chat.Store
// implementation.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/meikuraledutech/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, schema-ready store. The store is closed by the
// caller's cleanup, not by the suite.
type Factory func(t *testing.T) chat.Store

// Run executes the full store suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s chat.Store)
	}{
		{"CreateAndGetSession", testCreateAndGetSession},
		{"GetMissingSession", testGetMissingSession},
		{"ListSessionsNewestFirst", testListSessionsNewestFirst},
		{"AddMessageAssignsSeq", testAddMessageAssignsSeq},
		{"AddMessageUnknownSession", testAddMessageUnknownSession},
		{"RetitleOnlyDefault", testRetitleOnlyDefault},
		{"RetitleEmptyFirstMessage", testRetitleEmptyFirstMessage},
		{"ListMessagesEmpty", testListMessagesEmpty},
		{"DeleteMessages", testDeleteMessages},
		{"DeleteSessionCascades", testDeleteSessionCascades},
		{"Users", testUsers},
		{"ConcurrentAppends", testConcurrentAppends},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func testCreateAndGetSession(t *testing.T, s chat.Store) {
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultTitle, sess.Title)
	require.NoError(t, chat.ValidateSessionID(sess.ID))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, chat.DefaultTitle, got.Title)

	named, err := s.CreateSession(ctx, "Trip planning")
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", named.Title)
}

func testGetMissingSession(t *testing.T, s chat.Store) {
	_, err := s.GetSession(context.Background(), chat.NewSessionID())
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func testListSessionsNewestFirst(t *testing.T, s chat.Store) {
	ctx := context.Background()

	empty, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	var ids []string
	for range 3 {
		sess, err := s.CreateSession(ctx, "")
		require.NoError(t, err)
		ids = append(ids, sess.ID)
	}

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt), "sessions must be newest first")
	}
	assert.ElementsMatch(t, ids, []string{list[0].ID, list[1].ID, list[2].ID})
}

func testAddMessageAssignsSeq(t *testing.T, s chat.Store) {
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	first, err := s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleUser, Content: "hi"})
	require.NoError(t, err)
	second, err := s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleModel, Content: "hello"})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, 2, second.Seq)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, chat.TypeText, first.Type)

	msgs, err := s.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, chat.RoleModel, msgs[1].Role)
	assert.Equal(t, sess.ID, msgs[1].SessionID)
}

func testAddMessageUnknownSession(t *testing.T, s chat.Store) {
	_, err := s.AddMessage(context.Background(), chat.NewMessage{
		SessionID: chat.NewSessionID(),
		Role:      chat.RoleUser,
		Content:   "orphan",
	})
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func testRetitleOnlyDefault(t *testing.T, s chat.Store) {
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	_, err = s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleUser, Content: "first", Retitle: true, Title: "first"})
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleUser, Content: "second", Retitle: true, Title: "second"})
	require.NoError(t, err)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	named, err := s.CreateSession(ctx, "Kept")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, chat.NewMessage{SessionID: named.ID, Role: chat.RoleUser, Content: "x", Retitle: true, Title: "x"})
	require.NoError(t, err)

	got, err = s.GetSession(ctx, named.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kept", got.Title)
}

func testRetitleEmptyFirstMessage(t *testing.T, s chat.Store) {
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	_, err = s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleUser, Content: "", Retitle: true, Title: ""})
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleUser, Content: "second question", Retitle: true, Title: "second question"})
	require.NoError(t, err)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Title)
}

func testListMessagesEmpty(t *testing.T, s chat.Store) {
	msgs, err := s.ListMessages(context.Background(), chat.NewSessionID())
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func testDeleteMessages(t *testing.T, s chat.Store) {
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	var added []*chat.Message
	for _, content := range []string{"a", "b", "c"} {
		m, err := s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleUser, Content: content})
		require.NoError(t, err)
		added = append(added, m)
	}

	n, err := s.DeleteMessages(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.DeleteMessages(ctx, added[1].ID, added[2].ID, 999999)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs, err := s.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].Content)

	next, err := s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleModel, Content: "d"})
	require.NoError(t, err)
	assert.Greater(t, next.ID, added[2].ID)
}

func testDeleteSessionCascades(t *testing.T, s chat.Store) {
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	other, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	_, err = s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleUser, Content: "gone"})
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, chat.NewMessage{SessionID: other.ID, Role: chat.RoleUser, Content: "kept"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)

	msgs, err := s.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = s.ListMessages(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	assert.NoError(t, s.DeleteSession(ctx, chat.NewSessionID()))
}

func testUsers(t *testing.T, s chat.Store) {
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "ada", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ada", user.Username)

	_, err = s.CreateUser(ctx, "ada", "other")
	assert.ErrorIs(t, err, chat.ErrUsernameTaken)

	got, err := s.GetUserByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = s.GetUserByUsername(ctx, "grace")
	assert.ErrorIs(t, err, chat.ErrUserNotFound)
}

func testConcurrentAppends(t *testing.T, s chat.Store) {
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddMessage(ctx, chat.NewMessage{SessionID: sess.ID, Role: chat.RoleUser, Content: "x"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.Seq)
	}
}
