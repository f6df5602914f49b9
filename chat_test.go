package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "hello", "hello"},
		{"exactly thirty", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"truncated", strings.Repeat("b", 31), strings.Repeat("b", 30) + "..."},
		{"counts runes", strings.Repeat("é", 35), strings.Repeat("é", 30) + "..."},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoTitle(tt.in))
		})
	}
}

func TestModelSetForKind(t *testing.T) {
	m := DefaultModels()
	assert.Equal(t, "deepseek-r1:7b", m.ForKind(KindLogic))
	assert.Equal(t, "qwen3:8b", m.ForKind(KindCode))
	assert.Equal(t, "mistral:latest", m.ForKind(KindGeneral))

	m.Code = ""
	assert.Equal(t, "mistral:latest", m.ForKind(KindCode))
}

func TestCapabilityTextKind(t *testing.T) {
	assert.Equal(t, KindLogic, CapabilityLogic.TextKind())
	assert.Equal(t, KindCode, CapabilityCode.TextKind())
	assert.Equal(t, KindGeneral, CapabilityGeneral.TextKind())
	assert.Equal(t, KindGeneral, CapabilityVision.TextKind())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleModel.Valid())
	assert.False(t, Role("system").Valid())
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID(NewSessionID()))
	assert.ErrorIs(t, ValidateSessionID("1; DROP TABLE"), ErrInvalidSessionID)
	assert.ErrorIs(t, ValidateSessionID(""), ErrInvalidSessionID)

	id := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	assert.NoError(t, ValidateSessionID(id))
	for _, alt := range []string{
		"urn:uuid:" + id,
		"{" + id + "}",
		"1b4e28ba2fa111d2883f0016d3cca427",
		"1B4E28BA-2FA1-11D2-883F-0016D3CCA427",
	} {
		assert.ErrorIs(t, ValidateSessionID(alt), ErrInvalidSessionID, alt)
	}
}

type countingSink struct {
	n   int
	err error
}

func (s *countingSink) Record(context.Context, Interaction) error {
	s.n++
	return s.err
}

func TestMultiSink(t *testing.T) {
	ok := &countingSink{}
	bad := &countingSink{err: errors.New("disk full")}

	err := MultiSink{ok, nil, bad}.Record(context.Background(), Interaction{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, ok.n)
	assert.Equal(t, 1, bad.n)

	assert.NoError(t, MultiSink{ok}.Record(context.Background(), Interaction{}))
	assert.NoError(t, NopSink{}.Record(context.Background(), Interaction{}))
}
