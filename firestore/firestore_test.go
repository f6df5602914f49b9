package firestore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to the emulator under a fresh project id so every
// test starts from empty collections.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	s, err := NewStore(context.Background(), "chat-test-"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestNewStoreRequiresProject(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) chat.Store {
		return openTestStore(t)
	})
}

func TestRecordInteraction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, chat.Interaction{
		Capability: chat.CapabilityGeneral,
		Model:      "mistral:latest",
		Prompt:     "hello",
		Response:   "hi",
	}))

	snaps, err := s.client.Collection("interactions").Documents(ctx).GetAll()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "hi", snaps[0].Data()["response"])
}
