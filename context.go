package sessiongate

import "context"

type identityContextKey struct{}

// WithIdentity attaches an authenticated identity to ctx. The HTTP guard calls
// it after a successful Authenticate.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}

// UserIDFromContext returns the authenticated user ID, or "" when the request
// was not authenticated.
func UserIDFromContext(ctx context.Context) string {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	return id.UserID
}
