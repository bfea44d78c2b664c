// Package auth identifies the caller of an HTTP request.
//
// Two Authenticators are provided:
//
//   - OIDCAuthenticator verifies an OpenID Connect ID token passed as
//     "Authorization: Bearer <token>" against the issuer's published keys.
//   - HeaderAuthenticator trusts a user id header set by an authenticating
//     reverse proxy.
//
// A request without credentials yields ErrNoCredentials and is served as
// anonymous; credentials that fail verification yield ErrInvalidCredentials,
// which wraps apperr.ErrUnauthenticated. Mapping an Identity to a role profile
// is left to middleware.Authenticate.
package auth
