package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-github-auth/apiclient"
	"github.com/jrsteele09/go-github-auth/browser"
	"github.com/jrsteele09/go-github-auth/exchange"
	"github.com/jrsteele09/go-github-auth/oauthmodel"
	"github.com/jrsteele09/go-github-auth/tokenstore"
	"github.com/jrsteele09/go-github-auth/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Deps holds the collaborators of the Controller.
type Deps struct {
	Store     tokenstore.Store   // Durable token and profile
	Clients   apiclient.Clients  // API client factory; owns the token key
	Exchanger exchange.Exchanger // Redeems codes at the target's token endpoint
	Launcher  browser.Launcher   // Browser consent round trip
	Pending   PendingRepo        // Optional, defaults to an in-memory repo
}

// Controller owns the session: it is the only writer of the persisted token and
// profile, and publishes every state change to watchers.
type Controller struct {
	deps    Deps
	target  TargetConfig
	builder *AuthorizationBuilder
	signIn  *semaphore.Weighted
	loadMu  sync.Mutex
	nowTime func() time.Time
	logger  zerolog.Logger

	mu       sync.RWMutex
	snapshot Snapshot

	notifyMu    sync.Mutex
	watchers    map[int]func(Snapshot)
	nextWatcher int

	builderOpts []BuilderOption
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithBuilderOptions passes options to the authorization request builder.
func WithBuilderOptions(opts ...BuilderOption) ControllerOption {
	return func(c *Controller) {
		c.builderOpts = append(c.builderOpts, opts...)
	}
}

// NewController creates a controller in StateLoading. Call Load before anything else.
func NewController(deps Deps, target TargetConfig, options ...ControllerOption) (*Controller, error) {
	if deps.Store == nil {
		return nil, errors.New("[NewController] Store is required")
	}
	if deps.Clients == nil {
		return nil, errors.New("[NewController] Clients is required")
	}
	if deps.Exchanger == nil {
		return nil, errors.New("[NewController] Exchanger is required")
	}
	if deps.Launcher == nil {
		return nil, errors.New("[NewController] Launcher is required")
	}
	if deps.Pending == nil {
		deps.Pending = NewInMemoryPendingRepo()
	}

	c := &Controller{
		deps:     deps,
		target:   target,
		signIn:   semaphore.NewWeighted(1),
		nowTime:  time.Now,
		logger:   log.Logger,
		snapshot: Snapshot{State: StateLoading},
		watchers: make(map[int]func(Snapshot)),
	}
	for _, opt := range options {
		opt(c)
	}
	c.builder = NewAuthorizationBuilder(target, c.builderOpts...)
	c.logger = c.logger.With().Str("component", "session").Str("target", string(target.Target)).Logger()
	return c, nil
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.clone()
}

// Watch registers fn for every published change and returns a function removing it.
// fn is called synchronously and must not call back into the Controller's mutating methods.
func (c *Controller) Watch(fn func(Snapshot)) (cancel func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = fn
	return func() {
		c.notifyMu.Lock()
		defer c.notifyMu.Unlock()
		delete(c.watchers, id)
	}
}

// Load reads the persisted token and profile. Both present yields StateAuthenticated with the
// cached profile and no network call; anything else yields StateUnauthenticated.
// Only the first Load leaves StateLoading; concurrent calls wait for it and later calls are no-ops.
func (c *Controller) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if c.Snapshot().State != StateLoading {
		return nil
	}

	profile, err := c.readSession(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read persisted session")
		c.publish(Snapshot{State: StateUnauthenticated})
		return fmt.Errorf("[Controller.Load] %w", err)
	}
	if profile == nil {
		c.publish(Snapshot{State: StateUnauthenticated})
		return nil
	}
	c.publish(Snapshot{State: StateAuthenticated, User: profile})
	return nil
}

func (c *Controller) readSession(ctx context.Context) (*users.Profile, error) {
	token, err := c.deps.Store.Get(ctx, tokenstore.KeyAccessToken)
	if errors.Is(err, tokenstore.ErrNotFound) || (err == nil && token == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, err := c.deps.Store.Get(ctx, tokenstore.KeyUserProfile)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	profile, ok := users.ParseProfile(raw)
	if !ok {
		c.logger.Warn().Msg("cached profile is malformed, treating session as signed out")
		return nil, nil
	}
	return profile, nil
}

// SignIn runs one authorization attempt. It is only valid from StateUnauthenticated; a call
// while another attempt is in flight returns nil without doing anything.
// A cancelled or denied consent returns nil and writes nothing. Every other failure leaves the
// session unauthenticated and is returned.
func (c *Controller) SignIn(ctx context.Context) error {
	if !c.signIn.TryAcquire(1) {
		c.logger.Debug().Msg("sign-in already in progress")
		return nil
	}
	defer c.signIn.Release(1)

	if state := c.Snapshot().State; state != StateUnauthenticated {
		return fmt.Errorf("[Controller.SignIn] from %s: %w", state, ErrInvalidTransition)
	}

	logger := c.logger.With().Str("attempt", uuid.NewString()).Str("client_id", c.target.ClientID).Logger()

	if c.target.ClientID == "" {
		logger.Error().Msg("sign-in refused: no OAuth client id configured for this target")
		return fmt.Errorf("[Controller.SignIn] %w", ErrMissingClientID)
	}

	req, err := c.builder.Build()
	if err != nil {
		logger.Error().Err(err).Msg("failed to build authorization request")
		return fmt.Errorf("[Controller.SignIn] %w", err)
	}
	err = c.deps.Pending.Put(&PendingAuthorization{
		State:        req.State,
		CodeVerifier: req.CodeVerifier,
		RedirectURI:  req.RedirectURI,
		ClientID:     req.ClientID,
		CreatedAt:    c.nowTime(),
	})
	if err != nil {
		return fmt.Errorf("[Controller.SignIn] %w", err)
	}

	c.setSigningIn(true)
	defer c.setSigningIn(false)

	logger.Info().Str("redirect_uri", req.RedirectURI).Msg("starting authorization")
	result, err := c.deps.Launcher.Launch(ctx, req.URL, req.RedirectURI)
	if err != nil {
		c.discard(req.State)
		logger.Error().Err(err).Msg("browser launch failed")
		return fmt.Errorf("[Controller.SignIn] %w", err)
	}

	switch result.Kind {
	case browser.Success:
	case browser.Cancelled:
		c.discard(req.State)
		logger.Info().Str("reason", result.Reason).Msg("authorization cancelled")
		return nil
	default:
		c.discard(req.State)
		logger.Warn().Str("reason", result.Reason).Msg("authorization failed")
		return fmt.Errorf("[Controller.SignIn] %w: %s", ErrAuthorizationFailed, result.Reason)
	}

	if result.State != req.State {
		c.discard(req.State)
		logger.Error().Msg("callback state does not match the pending attempt")
		return fmt.Errorf("[Controller.SignIn] %w", ErrStateMismatch)
	}

	pending, err := c.deps.Pending.Take(result.State)
	if err != nil || pending.CodeVerifier == "" || c.nowTime().Sub(pending.CreatedAt) > pendingTimeout {
		logger.Error().Msg("no code verifier for this callback, sign-in must be restarted")
		return fmt.Errorf("[Controller.SignIn] %w", ErrMissingVerifier)
	}

	tokenResp, err := c.deps.Exchanger.Exchange(ctx, c.target.TokenEndpoint, oauthmodel.ExchangeRequest{
		ClientID:     pending.ClientID,
		Code:         result.Code,
		CodeVerifier: pending.CodeVerifier,
		RedirectURI:  pending.RedirectURI,
	})
	if err != nil {
		logger.Error().Err(err).Msg("token exchange failed")
		return fmt.Errorf("[Controller.SignIn] %w", err)
	}

	profile, err := c.establish(ctx, tokenResp.AccessToken)
	if err != nil {
		logger.Error().Err(err).Msg("failed to establish session")
		return fmt.Errorf("[Controller.SignIn] %w", err)
	}

	c.publish(Snapshot{State: StateAuthenticated, User: profile})
	logger.Info().Str("login", profile.Login).Msg("signed in")
	return nil
}

// establish persists the token, fetches and persists the profile. On failure the token
// is removed again so no partial session survives.
func (c *Controller) establish(ctx context.Context, token string) (*users.Profile, error) {
	if err := c.deps.Clients.SetToken(ctx, token); err != nil {
		c.rollback(ctx)
		return nil, fmt.Errorf("persist token: %w", err)
	}

	profile, err := c.deps.Clients.AuthenticatedUser(ctx)
	if err != nil {
		c.rollback(ctx)
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	raw, err := profile.Marshal()
	if err == nil {
		err = c.deps.Store.Set(ctx, tokenstore.KeyUserProfile, raw)
	}
	if err != nil {
		c.rollback(ctx)
		return nil, fmt.Errorf("persist profile: %w", err)
	}
	return profile, nil
}

func (c *Controller) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := c.deps.Clients.ClearToken(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to remove token after incomplete sign-in")
	}
}

// SignOut deletes the persisted token and profile and clears the session. Both deletions
// are attempted and the session ends unauthenticated even if one fails; the failures are returned.
func (c *Controller) SignOut(ctx context.Context) error {
	if state := c.Snapshot().State; state != StateAuthenticated {
		return fmt.Errorf("[Controller.SignOut] from %s: %w", state, ErrInvalidTransition)
	}

	tokenErr := c.deps.Clients.ClearToken(ctx)
	profileErr := c.deps.Store.Delete(ctx, tokenstore.KeyUserProfile)
	if profileErr != nil {
		profileErr = fmt.Errorf("delete profile: %w", profileErr)
	}

	c.publish(Snapshot{State: StateUnauthenticated})

	if err := errors.Join(tokenErr, profileErr); err != nil {
		c.logger.Error().Err(err).Msg("sign-out could not delete all persisted keys")
		return fmt.Errorf("[Controller.SignOut] %w", err)
	}
	c.logger.Info().Msg("signed out")
	return nil
}

func (c *Controller) discard(state string) {
	_, _ = c.deps.Pending.Take(state)
}

func (c *Controller) setSigningIn(v bool) {
	c.update(func(s *Snapshot) {
		s.SigningIn = v
	})
}

func (c *Controller) publish(next Snapshot) {
	c.update(func(s *Snapshot) {
		*s = next
	})
}

// update applies fn to the current snapshot and notifies watchers in publication order.
// User is cleared whenever the state is not authenticated.
func (c *Controller) update(fn func(*Snapshot)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	next := c.snapshot
	fn(&next)
	if next.State != StateAuthenticated {
		next.User = nil
	}
	c.snapshot = next.clone()
	published := c.snapshot.clone()
	c.mu.Unlock()

	for _, fn := range c.watchers {
		fn(published.clone())
	}
}
