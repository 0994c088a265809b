package observability

import (
	"context"
	"strings"
)

type correlationKey struct{}

// WithCorrelation binds a request correlation id to ctx. Blank ids leave ctx
// untouched.
func WithCorrelation(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationFrom returns the correlation id carried by ctx, or "".
func CorrelationFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
