package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var _ Launcher = (*LoopbackLauncher)(nil)

// LoopbackLauncher serves the redirect on a local callback server and opens the system browser.
// It has no timeout of its own; the wait is bounded only by ctx.
type LoopbackLauncher struct {
	open   func(url string) error
	logger zerolog.Logger
}

// LoopbackOption configures a LoopbackLauncher.
type LoopbackOption func(*LoopbackLauncher)

// WithOpener replaces OpenBrowser, e.g. to print the URL instead.
func WithOpener(open func(url string) error) LoopbackOption {
	return func(l *LoopbackLauncher) {
		l.open = open
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) LoopbackOption {
	return func(l *LoopbackLauncher) {
		l.logger = logger
	}
}

// NewLoopbackLauncher creates a launcher that opens the default browser.
func NewLoopbackLauncher(opts ...LoopbackOption) *LoopbackLauncher {
	l := &LoopbackLauncher{
		open:   OpenBrowser,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "browser.loopback").Logger()
	return l
}

// Launch starts the callback server, opens authURL and waits for one redirect.
// Cancelling ctx yields a Cancelled result.
func (l *LoopbackLauncher) Launch(ctx context.Context, authURL, redirectURI string) (Result, error) {
	srv, err := NewCallbackServer(redirectURI, l.logger)
	if err != nil {
		return Result{}, fmt.Errorf("[LoopbackLauncher.Launch] %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := srv.Start(serverCtx); err != nil {
		return Result{}, fmt.Errorf("[LoopbackLauncher.Launch] %w", err)
	}
	defer srv.Stop()

	if err := l.open(authURL); err != nil {
		// The URL is still usable when the opener fails, so keep waiting.
		l.logger.Warn().Err(err).Msg("could not open browser, visit the authorization URL manually")
	}

	result, err := srv.Wait(ctx)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Result{Kind: Cancelled, Reason: err.Error()}, nil
	default:
		return Result{}, fmt.Errorf("[LoopbackLauncher.Launch] %w", err)
	}
}
