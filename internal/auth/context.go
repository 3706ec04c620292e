package auth

import (
	"context"

	"github.com/tooldesk/tooldesk/internal/shared"
)

type identityContextKey struct{}

// ContextWithIdentity stores the verified identity in context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the verified identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}

// RequireIdentity returns the verified identity or an Unauthenticated error.
func RequireIdentity(ctx context.Context) (Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.UserID <= 0 {
		return Identity{}, shared.Unauthenticated("Authorization header missing.")
	}
	return identity, nil
}
