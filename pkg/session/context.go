package session

import (
	"context"
	"net/http"
)

type contextKey struct{ name string }

func (c contextKey) String() string { return c.name }

var identityContextKey = &contextKey{name: "session_identity"}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// FromContext returns the Identity attached by Middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok && id != nil
}

// AccountID returns the authenticated account ID of r, or "".
// It matches the signature rate limit key functions expect.
func AccountID(r *http.Request) string {
	if id, ok := FromContext(r.Context()); ok {
		return id.AccountID
	}
	return ""
}
