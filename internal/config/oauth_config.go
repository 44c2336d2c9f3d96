package config

import "time"

// Credentials is one registered OAuth app.
// Security: ClientSecret must never be logged or returned to callers
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Complete reports whether both halves of the pair are set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type OAuthConfig interface {
	GetWebCredentials() Credentials
	GetFallbackCredentials() Credentials
	GetUpstreamTokenURL() string
	GetUpstreamTimeout() time.Duration
	GetBreakerSettings() BreakerSettings
}

// BreakerSettings configures the circuit breaker in front of GitHub's token endpoint.
type BreakerSettings struct {
	MaxRequests  uint32        `env:"MAX_REQUESTS" envDefault:"1"`
	Interval     time.Duration `env:"INTERVAL" envDefault:"60s"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"30s"`
	FailureRatio float64       `env:"FAILURE_RATIO" envDefault:"0.5"`
	MinRequests  uint32        `env:"MIN_REQUESTS" envDefault:"5"`
}

type OAuth struct {
	WebClientID          string          `env:"GITHUB_CLIENT_ID_WEB"`
	WebClientSecret      string          `env:"GITHUB_CLIENT_SECRET_WEB"`
	FallbackClientID     string          `env:"GITHUB_CLIENT_ID"`
	FallbackClientSecret string          `env:"GITHUB_CLIENT_SECRET"`
	UpstreamTokenURL     string          `env:"GITHUB_TOKEN_URL" envDefault:"https://github.com/login/oauth/access_token"`
	UpstreamTimeout      time.Duration   `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	Breaker              BreakerSettings `envPrefix:"BREAKER_"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetWebCredentials() Credentials {
	return Credentials{ClientID: o.WebClientID, ClientSecret: o.WebClientSecret}
}

func (o OAuth) GetFallbackCredentials() Credentials {
	return Credentials{ClientID: o.FallbackClientID, ClientSecret: o.FallbackClientSecret}
}

func (o OAuth) GetUpstreamTokenURL() string {
	return o.UpstreamTokenURL
}

func (o OAuth) GetUpstreamTimeout() time.Duration {
	return o.UpstreamTimeout
}

func (o OAuth) GetBreakerSettings() BreakerSettings {
	return o.Breaker
}
