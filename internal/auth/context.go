// ABOUTME: Identity propagation through request contexts
// ABOUTME: Provides WithUserID/UserIDFromContext for handlers downstream of the middleware

package auth

import "context"

// userIDKey is the key type for storing the authenticated user ID in a context.
type userIDKey struct{}

// WithUserID returns a new context with the authenticated user ID attached.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext retrieves the authenticated user ID, returning "" if absent.
func UserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userIDKey{})
	if val == nil {
		return ""
	}
	userID, ok := val.(string)
	if !ok {
		return ""
	}
	return userID
}
