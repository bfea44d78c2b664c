package auth

import (
	"net/http"
	"strings"
)

// HeaderAuthenticator trusts identity headers set by an authenticating proxy.
// Only deploy it behind a proxy that strips these headers from client requests.
type HeaderAuthenticator struct {
	userHeader  string
	emailHeader string
}

// NewHeaderAuthenticator reads the subject from userHeader and the email from emailHeader
func NewHeaderAuthenticator(userHeader, emailHeader string) *HeaderAuthenticator {
	return &HeaderAuthenticator{userHeader: userHeader, emailHeader: emailHeader}
}

// Authenticate implements Authenticator
func (a *HeaderAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	subject := strings.TrimSpace(r.Header.Get(a.userHeader))
	if subject == "" {
		return nil, ErrNoCredentials
	}
	identity := &Identity{Subject: subject}
	if a.emailHeader != "" {
		identity.Email = strings.TrimSpace(r.Header.Get(a.emailHeader))
	}
	return identity, nil
}
