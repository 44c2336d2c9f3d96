package auth

import (
	"errors"

	apperrors "github.com/jrsteele09/go-github-auth/internal/errors"
)

var (
	// ErrAuthorizationFailed is returned when the provider redirects back with an error other than a denial.
	ErrAuthorizationFailed = errors.New("authorization failed")

	ErrMissingClientID   = apperrors.ErrMissingClientID
	ErrMissingVerifier   = apperrors.ErrMissingVerifier
	ErrStateMismatch     = apperrors.ErrStateMismatch
	ErrInvalidTransition = apperrors.ErrInvalidTransition
)
