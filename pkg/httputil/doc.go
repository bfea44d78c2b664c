// Package httputil holds the JSON request and response helpers and the
// generic middleware shared by the mediagate API.
//
// # Errors
//
// Handlers return domain errors and let WriteAppError pick the status from the
// apperr category the error wraps:
//
//	ErrUnauthenticated 401, ErrForbidden 403, ErrNotFound 404,
//	ErrConflict 409, ErrPrecondition 422, ErrInvalid 400,
//	ErrRateLimited 429, anything else 500
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
