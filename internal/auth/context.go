package auth

import "context"

// ctxKey is a private type for context keys to avoid collisions.
type ctxKey string

// ctxIdentity is the context key for the authenticated username.
const ctxIdentity ctxKey = "identity"

// WithIdentity returns a context carrying the authenticated username for
// the rest of the request pipeline.
func WithIdentity(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxIdentity, username)
}

// IdentityFrom returns the authenticated username from the context, or
// "" for anonymous requests.
func IdentityFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxIdentity).(string); ok {
		return v
	}
	return ""
}
