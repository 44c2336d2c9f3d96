package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/go-github-auth/internal/errors"
	"github.com/jrsteele09/go-github-auth/oauthmodel"
	"golang.org/x/oauth2"
)

const stateLength = 32

// DefaultScopes are requested on every sign-in.
var DefaultScopes = []string{"read:user", "user:email", "repo", "notifications", "workflow"}

// AuthorizationRequest is one sign-in attempt's launchable URL and its secrets.
// CodeVerifier and State stay in memory; only URL leaves the process.
type AuthorizationRequest struct {
	URL          string
	State        string
	CodeVerifier string
	RedirectURI  string
	ClientID     string
}

// AuthorizationBuilder produces PKCE authorization requests for one target.
type AuthorizationBuilder struct {
	target  TargetConfig
	authURL string
	scopes  []string
}

// BuilderOption configures an AuthorizationBuilder.
type BuilderOption func(*AuthorizationBuilder)

// WithAuthURL overrides GitHub's authorize endpoint.
func WithAuthURL(u string) BuilderOption {
	return func(b *AuthorizationBuilder) {
		b.authURL = u
	}
}

// WithScopes overrides DefaultScopes.
func WithScopes(scopes ...string) BuilderOption {
	return func(b *AuthorizationBuilder) {
		b.scopes = scopes
	}
}

// NewAuthorizationBuilder creates a builder for target.
func NewAuthorizationBuilder(target TargetConfig, opts ...BuilderOption) *AuthorizationBuilder {
	b := &AuthorizationBuilder{
		target:  target,
		authURL: GitHubAuthorizeURL,
		scopes:  DefaultScopes,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build generates a fresh verifier and state and returns the authorization URL embedding
// the S256 challenge, scopes, redirect URI and client id.
func (b *AuthorizationBuilder) Build() (*AuthorizationRequest, error) {
	verifier := oauth2.GenerateVerifier()
	state, err := generateRandomString(stateLength)
	if err != nil {
		return nil, fmt.Errorf("[AuthorizationBuilder.Build] %w", err)
	}

	params := oauthmodel.AuthorizationParameters{
		ResponseType:        oauthmodel.CodeResponseType,
		ClientID:            b.target.ClientID,
		RedirectURI:         b.target.RedirectURI,
		Scopes:              b.scopes,
		State:               state,
		CodeChallenge:       oauth2.S256ChallengeFromVerifier(verifier),
		CodeChallengeMethod: oauthmodel.CodeMethodTypeS256,
	}
	if err := params.Validate(); err != nil {
		if errors.Is(err, oauthmodel.ErrMissingClientID) {
			return nil, fmt.Errorf("[AuthorizationBuilder.Build] %w", apperrors.ErrMissingClientID)
		}
		return nil, fmt.Errorf("[AuthorizationBuilder.Build] %w", err)
	}

	conf := &oauth2.Config{
		ClientID:    params.ClientID,
		RedirectURL: params.RedirectURI,
		Scopes:      params.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  b.authURL,
			TokenURL: b.target.TokenEndpoint,
		},
	}

	return &AuthorizationRequest{
		URL:          conf.AuthCodeURL(params.State, oauth2.S256ChallengeOption(verifier)),
		State:        params.State,
		CodeVerifier: verifier,
		RedirectURI:  params.RedirectURI,
		ClientID:     params.ClientID,
	}, nil
}

// generateRandomString creates a random base64url string from length bytes
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
