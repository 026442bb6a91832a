package shared

import "errors"

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates a failed sign-in.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionMissing indicates the session middleware did not run.
	ErrSessionMissing = errors.New("session missing")
	// ErrCSRFTokenMissing occurs when the CSRF token is absent.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens differ.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
