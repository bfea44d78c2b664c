// Package contextkeys provides centralized context key definitions
//
// All request-scoped values that cross package boundaries are keyed here so
// the setter and the readers agree on one key and one type.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/mediagate/pkg/contextkeys"
//	ctx = contextkeys.WithProfile(ctx, profile)
//	profile, _ := ctx.Value(contextkeys.ProfileKey).(*rbac.Profile)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ProfileKey contains the requester's *rbac.Profile
	// Set by: middleware.Authenticate (pkg/middleware/auth.go)
	// Required by: every API handler that acts for a signed-in user
	// Type: *rbac.Profile; absent for anonymous requests
	ProfileKey Key = "profile"

	// IdentityKey contains the verified *auth.Identity the profile was loaded for
	// Set by: middleware.Authenticate
	// Type: *auth.Identity
	IdentityKey Key = "identity"

	// ClientKey contains a stable key for the calling client (user id or IP)
	// Set by: middleware.ClientKeyMiddleware
	// Used by: attempt limiting for passwords and share lookups, API rate limiting
	// Type: string
	ClientKey Key = "client_key"
)

// WithProfile adds the requester's profile to the context
func WithProfile(ctx context.Context, profile interface{}) context.Context {
	return context.WithValue(ctx, ProfileKey, profile)
}

// WithIdentity adds the verified identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithClientKey adds the client key to the context
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ClientKey, key)
}

// GetClientKey retrieves the client key from context
func GetClientKey(ctx context.Context) string {
	if key, ok := ctx.Value(ClientKey).(string); ok {
		return key
	}
	return ""
}
