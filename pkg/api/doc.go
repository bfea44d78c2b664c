// Package api exposes the media library over HTTP/JSON.
//
// Each handler group (profiles, content, access, groups, bundles, billing,
// sharing, uploads) implements RouteRegistrar and mounts under /api/v1.
// Handlers read the caller from the request context, populated by
// middleware.Authenticate, and translate apperr categories to status codes
// through httputil.WriteAppError. Access denials are not errors: view
// endpoints answer 200 with the decision so clients can prompt for a
// password or a sign-in.
//
// NewServices builds the service graph over a single Store; both
// storage/memory and storage/sqlstore satisfy it.
package api
