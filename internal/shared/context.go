package shared

import "context"

// Caller identifies the pre-authenticated administrator performing a
// request. Authentication happens upstream; the engine trusts the
// identity it is handed.
type Caller struct {
	ID   string
	Name string
}

type callerContextKey struct{}

// ContextWithCaller stores the caller identity in context.
func ContextWithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// CallerFromContext extracts the caller identity from context.
func CallerFromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(callerContextKey{}).(Caller)
	return c
}
