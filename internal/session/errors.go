package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies authentication failures so callers can render
// actionable guidance without string matching.
type ErrorKind string

const (
	// KindInvalidCredentials means the provider rejected the username or
	// password.
	KindInvalidCredentials ErrorKind = "invalid_credentials"

	// KindInvalidToken means a manually supplied token was rejected or
	// malformed.
	KindInvalidToken ErrorKind = "invalid_token"

	// KindTransport means a network failure or timeout talking to the
	// provider or the platform API.
	KindTransport ErrorKind = "transport"

	// KindReauthRequired means the session expired and could not be
	// refreshed; the session has been cleared.
	KindReauthRequired ErrorKind = "reauth_required"

	// KindUnauthenticated means no session exists at all.
	KindUnauthenticated ErrorKind = "unauthenticated"

	// KindRemoteError means the platform API returned a well-formed
	// failure (e.g. unknown realm).
	KindRemoteError ErrorKind = "remote_error"
)

// AuthError is the typed error returned by the lifecycle manager and the
// API client. Callers inspect Kind (via errors.As or KindOf) rather than
// the message.
type AuthError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

// Unwrap returns the wrapped error for error chain inspection.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates an AuthError wrapping err (which may be nil).
func NewAuthError(kind ErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// KindOf returns the ErrorKind of err if it is (or wraps) an AuthError,
// and "" otherwise.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}
