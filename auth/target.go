package auth

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/jrsteele09/go-github-auth/internal/errors"
	"github.com/rs/zerolog/log"
)

// Target is the runtime the sign-in flow runs in. Each target is registered with
// GitHub as its own OAuth app with its own callback URL.
type Target string

const (
	// TargetNative is the mobile app, redirected through a custom URL scheme.
	TargetNative Target = "native"
	// TargetWeb is the browser build; its token exchange goes through the relay.
	TargetWeb Target = "web"
	// TargetLoopback is a desktop process receiving the redirect on 127.0.0.1.
	TargetLoopback Target = "loopback"
)

const (
	NativeRedirectURI       = "awesomegithubapp://oauth/callback"
	CallbackPath            = "/oauth/callback"
	GitHubAuthorizeURL      = "https://github.com/login/oauth/authorize"
	GitHubTokenURL          = "https://github.com/login/oauth/access_token"
	DefaultTokenExchangeURL = "https://awesomegithubapp-api.involvex.workers.dev/token"
	DefaultLoopbackPort     = 8976
)

// TargetSettings holds the per-deployment values targets are resolved from.
type TargetSettings struct {
	NativeClientID      string
	WebClientID         string
	WebOrigin           string
	WebTokenExchangeURL string
	LoopbackPort        int
}

// TargetConfig is everything the flow needs that differs between runtimes.
type TargetConfig struct {
	Target        Target
	ClientID      string
	RedirectURI   string
	TokenEndpoint string
}

// ParseTarget converts a configuration string to a Target.
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case TargetNative, TargetWeb, TargetLoopback:
		return t, nil
	default:
		return "", fmt.Errorf("[ParseTarget] %q: %w", s, apperrors.ErrUnknownTarget)
	}
}

// ResolveTarget returns the client id, redirect URI and token endpoint for target.
func ResolveTarget(target Target, s TargetSettings) (TargetConfig, error) {
	var cfg TargetConfig
	switch target {
	case TargetNative:
		cfg = TargetConfig{
			Target:        target,
			ClientID:      s.NativeClientID,
			RedirectURI:   NativeRedirectURI,
			TokenEndpoint: GitHubTokenURL,
		}
	case TargetWeb:
		redirectURI, err := webRedirectURI(s.WebOrigin)
		if err != nil {
			return TargetConfig{}, fmt.Errorf("[ResolveTarget] %w", err)
		}
		endpoint := s.WebTokenExchangeURL
		if endpoint == "" {
			endpoint = DefaultTokenExchangeURL
		}
		cfg = TargetConfig{
			Target:        target,
			ClientID:      s.WebClientID,
			RedirectURI:   redirectURI,
			TokenEndpoint: endpoint,
		}
	case TargetLoopback:
		port := s.LoopbackPort
		if port == 0 {
			port = DefaultLoopbackPort
		}
		cfg = TargetConfig{
			Target:        target,
			ClientID:      s.NativeClientID,
			RedirectURI:   "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + CallbackPath,
			TokenEndpoint: GitHubTokenURL,
		}
	default:
		return TargetConfig{}, fmt.Errorf("[ResolveTarget] %q: %w", target, apperrors.ErrUnknownTarget)
	}

	if strings.TrimSpace(cfg.ClientID) == "" {
		return TargetConfig{}, fmt.Errorf("[ResolveTarget] %s: %w", target, apperrors.ErrMissingClientID)
	}

	// A shared id means the native build is registered against the web callback URL
	// (or vice versa) and GitHub will reject one of the two redirects.
	if target != TargetWeb && s.WebClientID != "" && s.WebClientID == s.NativeClientID {
		log.Warn().
			Str("target", string(target)).
			Str("client_id", cfg.ClientID).
			Msg("native and web OAuth client ids are identical; each runtime needs its own OAuth app")
	}

	return cfg, nil
}

func webRedirectURI(origin string) (string, error) {
	if origin == "" {
		return "", fmt.Errorf("web origin: %w", apperrors.ErrNotConfigured)
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("web origin %q is not an absolute URL", origin)
	}
	return u.Scheme + "://" + u.Host + CallbackPath, nil
}
