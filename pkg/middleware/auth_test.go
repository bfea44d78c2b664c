package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/mediagate/pkg/auth"
	"github.com/platinummonkey/mediagate/pkg/contextkeys"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

type stubAuthenticator struct {
	identity *auth.Identity
	err      error
}

func (s stubAuthenticator) Authenticate(*http.Request) (*auth.Identity, error) {
	return s.identity, s.err
}

type stubProfiles struct {
	err   error
	calls int
}

func (s *stubProfiles) EnsureProfile(_ context.Context, userID, email, _ string) (*rbac.Profile, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &rbac.Profile{UserID: userID, Email: email, Role: rbac.RoleClient, Active: true}, nil
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	var got *rbac.Profile
	var clientKey string
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ProfileFromContext(r.Context())
		clientKey = contextkeys.GetClientKey(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("anonymous passes through", func(t *testing.T) {
		profiles := &stubProfiles{}
		h := Authenticate(stubAuthenticator{err: auth.ErrNoCredentials}, profiles)(ClientKeyMiddleware(final))

		req := httptest.NewRequest(http.MethodGet, "/content", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		w := serve(h, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, got)
		assert.Equal(t, "ip:192.0.2.10", clientKey)
		assert.Zero(t, profiles.calls)
	})

	t.Run("verified identity loads profile", func(t *testing.T) {
		profiles := &stubProfiles{}
		id := &auth.Identity{Subject: "user-1", Email: "client@example.com"}
		h := Authenticate(stubAuthenticator{identity: id}, profiles)(ClientKeyMiddleware(final))

		w := serve(h, httptest.NewRequest(http.MethodGet, "/content", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, got)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, "client@example.com", got.Email)
		assert.Equal(t, "user:user-1", clientKey)
	})

	t.Run("invalid credentials rejected", func(t *testing.T) {
		h := Authenticate(stubAuthenticator{err: auth.ErrInvalidCredentials}, &stubProfiles{})(final)

		w := serve(h, httptest.NewRequest(http.MethodGet, "/content", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("profile store failure", func(t *testing.T) {
		id := &auth.Identity{Subject: "user-1"}
		h := Authenticate(stubAuthenticator{identity: id}, &stubProfiles{err: errors.New("db down")})(final)

		w := serve(h, httptest.NewRequest(http.MethodGet, "/content", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRequireSignedIn(t *testing.T) {
	h := RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextkeys.WithProfile(req.Context(), &rbac.Profile{UserID: "u"}))
	w = serve(h, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
