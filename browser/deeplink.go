package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/jrsteele09/go-github-auth/oauthmodel"
)

// ErrLaunchInProgress is returned when Launch is called while another launch waits for its redirect.
var ErrLaunchInProgress = errors.New("a browser launch is already waiting for a redirect")

var _ Launcher = (*DeepLinkLauncher)(nil)

// DeepLinkLauncher serves runtimes where the host application receives the redirect
// itself (a custom URL scheme or a web callback route) and hands it over with Deliver.
type DeepLinkLauncher struct {
	open func(url string) error

	mu      sync.Mutex
	pending *pendingLaunch
}

type pendingLaunch struct {
	redirectURI string
	resultCh    chan Result
}

// NewDeepLinkLauncher creates a launcher that calls open with the authorization URL.
func NewDeepLinkLauncher(open func(url string) error) *DeepLinkLauncher {
	if open == nil {
		open = OpenBrowser
	}
	return &DeepLinkLauncher{open: open}
}

// Launch opens authURL and waits for Deliver, Dismiss, or ctx.
func (l *DeepLinkLauncher) Launch(ctx context.Context, authURL, redirectURI string) (Result, error) {
	p := &pendingLaunch{redirectURI: redirectURI, resultCh: make(chan Result, 1)}

	l.mu.Lock()
	if l.pending != nil {
		l.mu.Unlock()
		return Result{}, ErrLaunchInProgress
	}
	l.pending = p
	l.mu.Unlock()

	defer l.complete(p)

	if err := l.open(authURL); err != nil {
		return Result{}, fmt.Errorf("[DeepLinkLauncher.Launch] %w", err)
	}

	select {
	case result := <-p.resultCh:
		return result, nil
	case <-ctx.Done():
		return Result{Kind: Cancelled, Reason: ctx.Err().Error()}, nil
	}
}

// Deliver hands an incoming redirect URL to the waiting launch. It reports false when no
// launch is waiting or the URL is not for the pending redirect URI, so a later app-resume
// event with a stale URL does not re-trigger the flow.
func (l *DeepLinkLauncher) Deliver(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.pending
	if p == nil || !matchesRedirect(u, p.redirectURI) {
		return false
	}
	l.pending = nil

	p.resultCh <- ResultFromCallback(oauthmodel.ParseCallbackParameters(u.Query()))
	return true
}

// Dismiss resolves the waiting launch as cancelled, e.g. when the web view is closed.
func (l *DeepLinkLauncher) Dismiss() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.pending
	if p == nil {
		return false
	}
	l.pending = nil
	p.resultCh <- Result{Kind: Cancelled, Reason: "dismissed"}
	return true
}

func (l *DeepLinkLauncher) complete(p *pendingLaunch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == p {
		l.pending = nil
	}
}

func matchesRedirect(u *url.URL, redirectURI string) bool {
	want, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, want.Scheme) &&
		strings.EqualFold(u.Host, want.Host) &&
		strings.TrimSuffix(u.Path, "/") == strings.TrimSuffix(want.Path, "/")
}
