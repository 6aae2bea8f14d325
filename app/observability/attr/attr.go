// Package attr holds the slog attribute helpers shared by every module.
package attr

import (
	"context"
	"log/slog"
)

type correlationIDKey struct{}

// WithCorrelationID returns a context carrying the correlation ID of the
// message or request being processed.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// CorrelationIDFrom returns the correlation ID stored in ctx, if any.
func CorrelationIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// ExtractCorrelationID returns the correlation ID stored in ctx as an attribute.
func ExtractCorrelationID(ctx context.Context) slog.Attr {
	return slog.String("correlation_id", CorrelationIDFrom(ctx))
}

func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

func Int(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Error renders err under the "error" key. A nil error renders as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func AttemptID(id string) slog.Attr {
	return slog.String("attempt_id", id)
}

func Topic(topic string) slog.Attr {
	return slog.String("topic", topic)
}
