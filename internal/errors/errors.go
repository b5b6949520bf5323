package errors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the token lifecycle and the proxy.
var (
	// ErrUnauthenticated means no valid credential can be obtained for the session and the
	// user has to log in again. Covers a missing token, a dead refresh token and a second 401.
	ErrUnauthenticated = errors.New("unauthenticated")

	// Login errors
	ErrExchangeFailed      = errors.New("authorization code exchange failed")
	ErrMissingRefreshToken = errors.New("token response is missing a refresh token")

	// ErrRefreshFailed never crosses the manager boundary on its own, it is always wrapped
	// by ErrUnauthenticated.
	ErrRefreshFailed = errors.New("refresh token exchange failed")

	// Configuration errors
	ErrInvalidCredentials = errors.New("invalid client credentials")

	// General errors
	ErrInvalidRequest  = errors.New("invalid request")
	ErrSessionNotFound = errors.New("session not found")
)

// UpstreamError is returned when the resource API was reached (or attempted) and failed for a
// reason other than authorization. Status is zero when the request never got a response.
type UpstreamError struct {
	Status int
	Body   []byte
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	}
	return fmt.Sprintf("upstream responded with status %d", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers only import one errors package.
func New(text string) error {
	return errors.New(text)
}
