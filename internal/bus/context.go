package bus

import (
	"context"

	"github.com/roach88/fintrack/internal/ir"
)

type flowKey struct{}

type causeKey struct{}

// WithFlow returns a context carrying the flow token.
func WithFlow(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, flowKey{}, token)
}

// FlowFrom returns the flow token carried by ctx.
func FlowFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(flowKey{}).(string)
	return token, ok && token != ""
}

// WithCause returns a context recording which invalidation started the
// execution that will run under it.
func WithCause(ctx context.Context, cause ir.Cause) context.Context {
	return context.WithValue(ctx, causeKey{}, cause)
}

// CauseFrom returns the invalidation cause carried by ctx.
// The zero Cause means the execution was issued directly.
func CauseFrom(ctx context.Context) ir.Cause {
	cause, _ := ctx.Value(causeKey{}).(ir.Cause)
	return cause
}
