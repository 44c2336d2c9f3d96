package browserfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-github-auth/browser"
)

// Launch is one recorded call.
type Launch struct {
	AuthURL     string
	RedirectURI string
}

var _ browser.Launcher = (*FakeLauncher)(nil)

// FakeLauncher returns scripted results. ResultFunc, when set, receives the authorization
// URL so tests can echo its state parameter back.
type FakeLauncher struct {
	mu       sync.Mutex
	launches []Launch

	Result     browser.Result
	Err        error
	ResultFunc func(authURL string) (browser.Result, error)

	// Block, when non-nil, is waited on before returning, to hold a sign-in in flight.
	Block chan struct{}
	// Started is closed on the first Launch call when non-nil.
	Started chan struct{}
	started sync.Once
}

func (f *FakeLauncher) Launch(ctx context.Context, authURL, redirectURI string) (browser.Result, error) {
	f.mu.Lock()
	f.launches = append(f.launches, Launch{AuthURL: authURL, RedirectURI: redirectURI})
	f.mu.Unlock()

	if f.Started != nil {
		f.started.Do(func() { close(f.Started) })
	}
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return browser.Result{Kind: browser.Cancelled}, nil
		}
	}
	if f.ResultFunc != nil {
		return f.ResultFunc(authURL)
	}
	return f.Result, f.Err
}

// Launches returns a copy of the recorded calls.
func (f *FakeLauncher) Launches() []Launch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Launch(nil), f.launches...)
}
