package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "console")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", "json")
	assert.Error(t, err)
}

func TestFromContextDefaultsToNop(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestFromContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	ctx := WithLogger(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")

	FromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "req-1", entry.ContextMap()["request_id"])
	assert.Equal(t, "req-1", RequestID(ctx))
}
