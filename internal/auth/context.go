// ABOUTME: Authenticated identity propagation through request handlers
// ABOUTME: Provides WithIdentity/FromContext for carrying the reviewer via context

package auth

import (
	"context"
)

// Identity holds the authenticated caller extracted from a request.
// Populated by the HTTP middleware and retrieved from context in handlers.
type Identity struct {
	// ReviewerID is the reviewer's Telegram user id from the token subject
	ReviewerID int64
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	val := ctx.Value(identityKey{})
	if val == nil {
		return nil
	}
	id, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return id
}
