// Package apperr defines the error categories shared by every mediagate package.
//
// Domain packages declare their own sentinels by wrapping one of these, so a
// caller can test either the precise condition or its category:
//
//	var ErrAlreadyUsed = fmt.Errorf("%w: invite already used", apperr.ErrPrecondition)
//
//	errors.Is(err, sharing.ErrAlreadyUsed)   // precise
//	errors.Is(err, apperr.ErrPrecondition)   // category
package apperr

import "errors"

var (
	// ErrUnauthenticated means the caller is anonymous but the operation needs an identity.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden means the caller is known but lacks the permission.
	ErrForbidden = errors.New("not permitted")
	// ErrNotFound covers missing and expired records.
	ErrNotFound = errors.New("not found")
	// ErrPrecondition means the record is in the wrong state for the operation.
	ErrPrecondition = errors.New("precondition failed")
	// ErrInvalid means the input itself is malformed.
	ErrInvalid = errors.New("invalid input")
	// ErrConflict means a concurrent writer won.
	ErrConflict = errors.New("conflict")
	// ErrRateLimited means the caller made too many attempts.
	ErrRateLimited = errors.New("too many attempts")
)

// Forbidden returns an ErrForbidden naming what was attempted.
func Forbidden(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

// Invalid returns an ErrInvalid with a description of the bad input.
func Invalid(format string, args ...any) error {
	return wrap(ErrInvalid, format, args...)
}
