package logging

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

// NewCorrelationID mints a fresh correlation ID, used once per delivery
// batch so its log lines can be grepped together.
func NewCorrelationID() string {
	return uuid.NewString()
}

// ContextWithCorrelationID attaches id to ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation ID on ctx, or "" if none was set.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
