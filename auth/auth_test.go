package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/memory"
)

func newService() *Service {
	return New(memory.New(), nil).WithCost(bcrypt.MinCost)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newService()
	ctx := context.Background()

	user, err := s.Register(ctx, "ada", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	got, err := s.Login(ctx, "ada", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestRegisterDuplicate(t *testing.T) {
	s := newService()
	ctx := context.Background()

	_, err := s.Register(ctx, "ada", "one")
	require.NoError(t, err)

	_, err = s.Register(ctx, "ada", "two")
	assert.ErrorIs(t, err, chat.ErrUsernameTaken)
}

func TestRegisterRequiresInput(t *testing.T) {
	s := newService()

	_, err := s.Register(context.Background(), "  ", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Register(context.Background(), "ada", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoginFailures(t *testing.T) {
	s := newService()
	ctx := context.Background()

	_, err := s.Register(ctx, "ada", "right")
	require.NoError(t, err)

	_, err = s.Login(ctx, "ada", "wrong")
	assert.ErrorIs(t, err, chat.ErrInvalidCredentials)

	_, err = s.Login(ctx, "grace", "right")
	assert.ErrorIs(t, err, chat.ErrInvalidCredentials)
}
