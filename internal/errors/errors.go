package errors

import (
	"errors"
	"fmt"
)

// Common error types for the GitHub sign-in flow and the token relay
var (
	// Configuration errors
	ErrMissingClientID = errors.New("missing oauth client id")
	ErrUnknownTarget   = errors.New("unknown runtime target")
	ErrNotConfigured   = errors.New("oauth credentials are not configured")

	// Protocol errors
	ErrMissingVerifier = errors.New("missing pkce code verifier")
	ErrStateMismatch   = errors.New("authorization state mismatch")

	// Session errors
	ErrInvalidTransition = errors.New("invalid session state transition")

	// Storage errors
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Upstream errors
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
