package tokenstore

import (
	"context"

	apperrors "github.com/jrsteele09/go-github-auth/internal/errors"
)

// Keys persisted by the sign-in flow. No other keys are written.
const (
	KeyAccessToken = "github_access_token"
	KeyUserProfile = "github_user_profile"
)

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = apperrors.ErrNotFound

	// ErrStorageUnavailable wraps backend failures (I/O, network).
	ErrStorageUnavailable = apperrors.ErrStorageUnavailable
)

// Store is durable key/value persistence for the access token and cached profile.
// Every operation may fail; implementations must return the failure rather than stale data.
type Store interface {
	// Get returns the stored value or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}
