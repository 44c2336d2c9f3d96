package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/go-github/v74/github"
	"github.com/jrsteele09/go-github-auth/tokenstore"
	"github.com/jrsteele09/go-github-auth/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// ProfileSource fetches the authenticated user's profile.
type ProfileSource interface {
	AuthenticatedUser(ctx context.Context) (*users.Profile, error)
}

// TokenSink receives credential changes. Each call invalidates the cached client.
type TokenSink interface {
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Clients is what the session controller needs from the factory.
type Clients interface {
	ProfileSource
	TokenSink
}

var _ Clients = (*Factory)(nil)

// Factory lazily builds one GitHub API client from the stored token.
// The cached client is discarded whenever the token changes so no caller
// keeps using a client built with an old or absent credential.
type Factory struct {
	mu         sync.Mutex
	store      tokenstore.Store
	baseURL    *url.URL
	transport  http.RoundTripper
	logger     zerolog.Logger
	client     *github.Client
	httpClient *http.Client
	builds     int
}

// Option configures a Factory.
type Option func(*Factory) error

// WithBaseURL points the client at a different API root (GitHub Enterprise, tests).
func WithBaseURL(raw string) Option {
	return func(f *Factory) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		f.baseURL = u
		return nil
	}
}

// WithTransport sets the base transport under the oauth2 transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Factory) error {
		f.transport = rt
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Factory) error {
		f.logger = l
		return nil
	}
}

// NewFactory creates a factory reading the token from store.
func NewFactory(store tokenstore.Store, opts ...Option) (*Factory, error) {
	if store == nil {
		return nil, errors.New("[NewFactory] token store is required")
	}
	f := &Factory{
		store:  store,
		logger: log.Logger,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, fmt.Errorf("[NewFactory] %w", err)
		}
	}
	f.logger = f.logger.With().Str("component", "apiclient").Logger()
	return f, nil
}

// Client returns the cached API client, building it from the stored token on first use.
// With no stored token the client is unauthenticated.
func (f *Factory) Client(ctx context.Context) (*github.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureLocked(ctx); err != nil {
		return nil, err
	}
	return f.client, nil
}

// HTTPClient returns the authenticated *http.Client behind Client, for GraphQL requests.
func (f *Factory) HTTPClient(ctx context.Context) (*http.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureLocked(ctx); err != nil {
		return nil, err
	}
	return f.httpClient, nil
}

// SetToken persists token and invalidates the cached client, even when persisting fails.
func (f *Factory) SetToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.invalidateLocked()

	if err := f.store.Set(ctx, tokenstore.KeyAccessToken, token); err != nil {
		return fmt.Errorf("[Factory.SetToken] %w", err)
	}
	return nil
}

// ClearToken deletes the stored token and invalidates the cached client, even when deleting fails.
func (f *Factory) ClearToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.invalidateLocked()

	if err := f.store.Delete(ctx, tokenstore.KeyAccessToken); err != nil {
		return fmt.Errorf("[Factory.ClearToken] %w", err)
	}
	return nil
}

// Builds reports how many clients have been constructed.
func (f *Factory) Builds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

// AuthenticatedUser fetches GET /user with the current credential.
func (f *Factory) AuthenticatedUser(ctx context.Context) (*users.Profile, error) {
	client, err := f.Client(ctx)
	if err != nil {
		return nil, err
	}
	u, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("[Factory.AuthenticatedUser] %w", err)
	}
	if u.GetLogin() == "" {
		return nil, errors.New("[Factory.AuthenticatedUser] profile has no login")
	}
	return profileFromGitHub(u), nil
}

// IsUnauthorized reports whether err is a 401 from the API, which indicates
// an expired or revoked token.
func IsUnauthorized(err error) bool {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode == http.StatusUnauthorized
	}
	return false
}

func (f *Factory) ensureLocked(ctx context.Context) error {
	if f.client != nil {
		return nil
	}

	token, err := f.store.Get(ctx, tokenstore.KeyAccessToken)
	if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		return fmt.Errorf("[Factory.Client] read token: %w", err)
	}

	base := &http.Client{Transport: f.transport}
	httpClient := base
	if token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	}

	client := github.NewClient(httpClient)
	if f.baseURL != nil {
		client.BaseURL = f.baseURL
	}

	f.client = client
	f.httpClient = httpClient
	f.builds++
	f.logger.Debug().Bool("authenticated", token != "").Int("build", f.builds).Msg("api client built")
	return nil
}

func (f *Factory) invalidateLocked() {
	f.client = nil
	f.httpClient = nil
}

func profileFromGitHub(u *github.User) *users.Profile {
	return &users.Profile{
		ID:          u.GetID(),
		Login:       u.GetLogin(),
		Name:        u.Name,
		Email:       u.Email,
		AvatarURL:   u.GetAvatarURL(),
		Bio:         u.Bio,
		Company:     u.Company,
		Location:    u.Location,
		Blog:        u.Blog,
		PublicRepos: u.GetPublicRepos(),
		Followers:   u.GetFollowers(),
		Following:   u.GetFollowing(),
		HTMLURL:     u.GetHTMLURL(),
	}
}
