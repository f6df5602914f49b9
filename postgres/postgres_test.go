package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *PGStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, url)
	require.NoError(t, err)
	require.NoError(t, s.DropSchema(ctx))
	require.NoError(t, s.CreateSchema(ctx))
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) chat.Store {
		return openTestStore(t)
	})
}

func TestMigrateIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))

	status, err := s.MigrationStatus(ctx)
	require.NoError(t, err)
	for _, m := range status {
		assert.True(t, m.Applied, m.Name)
	}
}

func TestRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Rollback(ctx))

	status, err := s.MigrationStatus(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, status)
	last := status[len(status)-1]
	assert.Equal(t, "003_interactions", last.Name)
	assert.False(t, last.Applied)
	assert.Nil(t, last.AppliedAt)

	require.NoError(t, s.Migrate(ctx))
}

func TestRecordInteraction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, chat.Interaction{
		Capability: chat.CapabilityCode,
		Model:      "qwen3:8b",
		Prompt:     "write a function",
		Response:   "func f() {}",
	}))

	got, err := s.Interactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, chat.CapabilityCode, got[0].Capability)
	assert.Equal(t, "func f() {}", got[0].Response)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestEmbeddedScripts(t *testing.T) {
	all, err := scripts()
	require.NoError(t, err)

	var names []string
	for _, m := range all {
		names = append(names, m.name)
		assert.Len(t, m.checksum, 64, m.name)
		assert.NotEmpty(t, m.down, m.name)
	}
	assert.Equal(t, []string{"001_sessions_messages", "002_users", "003_interactions"}, names)
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
