// Package logging builds the zap loggers used across the service and carries
// request-scoped loggers through a context.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	ctxKeyLogger    ctxKey = "logger"
	ctxKeyRequestID ctxKey = "request_id"
)

// New returns a production logger at level. format "console" switches to the
// human readable encoder; anything else logs JSON.
func New(level, format string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		lvl = parsed
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	if format == "console" {
		config.Encoding = "console"
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	return config.Build()
}

func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, l)
}

// WithRequestID stores a request id in ctx. FromContext attaches it to the
// returned logger.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	l, _ := ctx.Value(ctxKeyLogger).(*zap.Logger)
	if l == nil {
		l = zap.NewNop()
	}
	if id := RequestID(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	return l
}
