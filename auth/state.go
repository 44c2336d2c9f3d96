package auth

import "github.com/jrsteele09/go-github-auth/users"

// State is the session's authentication state.
type State int

const (
	// StateLoading is the initial state until persisted credentials are checked.
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session published to observers.
// User is non-nil exactly when State is StateAuthenticated.
// SigningIn is true while a sign-in attempt is in flight.
type Snapshot struct {
	State     State
	User      *users.Profile
	SigningIn bool
}

// IsAuthenticated reports whether protected routes may be shown.
func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

func (s Snapshot) clone() Snapshot {
	s.User = s.User.Clone()
	return s
}
