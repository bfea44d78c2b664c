package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCAuthenticator verifies OpenID Connect ID tokens sent as bearer tokens
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCAuthenticator discovers the issuer and verifies tokens issued to clientID
func NewOIDCAuthenticator(ctx context.Context, issuerURL, clientID string) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return NewOIDCAuthenticatorWithVerifier(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// NewOIDCAuthenticatorWithVerifier uses a prepared verifier
func NewOIDCAuthenticatorWithVerifier(verifier *oidc.IDTokenVerifier) *OIDCAuthenticator {
	return &OIDCAuthenticator{verifier: verifier}
}

type idClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
}

// Authenticate implements Authenticator
func (a *OIDCAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	token, err := a.verifier.Verify(r.Context(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	var claims idClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrInvalidCredentials, err)
	}

	identity := &Identity{Subject: token.Subject, Name: claims.Name}
	// an explicitly unverified email is not trusted
	if claims.EmailVerified == nil || *claims.EmailVerified {
		identity.Email = claims.Email
	}
	return identity, nil
}
