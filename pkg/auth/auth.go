package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/platinummonkey/mediagate/pkg/apperr"
)

var (
	// ErrNoCredentials means the request carries no credentials; it is served anonymously
	ErrNoCredentials = errors.New("no credentials presented")
	// ErrInvalidCredentials means credentials were presented but did not verify
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)
)

// Identity is the verified caller behind a request
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Authenticator turns a request into an Identity.
// It returns ErrNoCredentials for anonymous requests.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// bearerToken extracts the token from an "Authorization: Bearer" header
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidCredentials)
	}
	return strings.TrimSpace(token), nil
}
