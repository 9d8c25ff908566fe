package auth

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated principal of a request.
type Identity struct {
	UserID    uuid.UUID
	Superuser bool
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity installed by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
