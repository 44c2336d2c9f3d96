package auth

import (
	"errors"
	"sync"
	"time"
)

// pendingTimeout matches the lifetime GitHub gives an authorization code.
const pendingTimeout = 15 * time.Minute

// ErrPendingNotFound is returned by Take when no attempt exists for a state.
var ErrPendingNotFound = errors.New("pending authorization not found")

// PendingAuthorization is the in-memory half of one sign-in attempt. It is never persisted.
type PendingAuthorization struct {
	State        string
	CodeVerifier string
	RedirectURI  string
	ClientID     string
	CreatedAt    time.Time
}

// PendingRepo holds attempts keyed by their OAuth state value.
type PendingRepo interface {
	Put(p *PendingAuthorization) error
	// Take removes and returns the attempt, so it is consumed exactly once
	Take(state string) (*PendingAuthorization, error)
}

var _ PendingRepo = (*InMemoryPendingRepo)(nil)

// InMemoryPendingRepo is a thread-safe in-memory PendingRepo
type InMemoryPendingRepo struct {
	mu       sync.Mutex
	attempts map[string]*PendingAuthorization
}

// NewInMemoryPendingRepo creates an empty repo
func NewInMemoryPendingRepo() *InMemoryPendingRepo {
	return &InMemoryPendingRepo{
		attempts: make(map[string]*PendingAuthorization),
	}
}

// Put stores a copy of p
func (r *InMemoryPendingRepo) Put(p *PendingAuthorization) error {
	if p == nil {
		return errors.New("pending authorization cannot be nil")
	}
	if p.State == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := *p
	r.attempts[p.State] = &c
	return nil
}

// Take removes the attempt for state and returns it
func (r *InMemoryPendingRepo) Take(state string) (*PendingAuthorization, error) {
	if state == "" {
		return nil, ErrPendingNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.attempts[state]
	if !ok {
		return nil, ErrPendingNotFound
	}
	delete(r.attempts, state)
	return p, nil
}

// Len returns the number of attempts held
func (r *InMemoryPendingRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}
