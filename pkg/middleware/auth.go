package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/auth"
	"github.com/platinummonkey/mediagate/pkg/contextkeys"
	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/observability"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

// ProfileLoader returns the profile for a verified identity, creating it on first sign-in
type ProfileLoader interface {
	EnsureProfile(ctx context.Context, userID, email, displayName string) (*rbac.Profile, error)
}

// Authenticate resolves the caller's profile. Requests without credentials
// continue anonymously; credentials that fail verification are rejected with 401.
func Authenticate(authn auth.Authenticator, profiles ProfileLoader) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authn.Authenticate(r)
			if errors.Is(err, auth.ErrNoCredentials) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Debug("authentication failed")
				httputil.WriteAppError(w, err)
				return
			}

			profile, err := profiles.EnsureProfile(r.Context(), identity.Subject, identity.Email, identity.Name)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Error("failed to load profile")
				httputil.WriteAppError(w, err)
				return
			}

			ctx := contextkeys.WithIdentity(r.Context(), identity)
			ctx = contextkeys.WithProfile(ctx, profile)
			ctx = observability.WithUserID(ctx, profile.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProfileFromContext returns the requester's profile, or nil for anonymous requests
func ProfileFromContext(ctx context.Context) *rbac.Profile {
	profile, _ := ctx.Value(contextkeys.ProfileKey).(*rbac.Profile)
	return profile
}

// RequireSignedIn rejects anonymous requests with 401
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ProfileFromContext(r.Context()) == nil {
			httputil.WriteAppError(w, apperr.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKeyMiddleware records a stable key for the caller: the user id when
// signed in, otherwise the client IP. It must run after Authenticate.
func ClientKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + ClientIP(r)
		if profile := ProfileFromContext(r.Context()); profile != nil {
			key = "user:" + profile.UserID
		}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithClientKey(r.Context(), key)))
	})
}
