package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config is everything the relay server reads from its environment.
type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
}

var _ Config = (*mainConfig)(nil)

// New loads the relay configuration from the environment.
func New() (Config, error) {
	cfg := &mainConfig{}
	if err := Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load parses environment variables into cfg, which uses `env` tags.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
