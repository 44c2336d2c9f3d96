package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"github.com/jrsteele09/go-github-auth/internal/validator"
	"gopkg.in/yaml.v3"
)

const (
	StorageBackendFile  = "file"
	StorageBackendRedis = "redis"

	clientConfigFile = "ghauth/config.yaml"
)

// ClientConfig is the sign-in client's settings. Values come from an optional YAML
// file, then from the environment, which always wins.
type ClientConfig struct {
	Target           string        `yaml:"target" env:"GHAUTH_TARGET" validate:"oneof=native web loopback"`
	NativeClientID   string        `yaml:"native_client_id" env:"GITHUB_CLIENT_ID"`
	WebClientID      string        `yaml:"web_client_id" env:"GITHUB_CLIENT_ID_WEB"`
	WebOrigin        string        `yaml:"web_origin" env:"GHAUTH_WEB_ORIGIN" validate:"omitempty,http_url"`
	TokenExchangeURL string        `yaml:"token_exchange_url" env:"GHAUTH_TOKEN_EXCHANGE_URL" validate:"omitempty,http_url"`
	LoopbackPort     int           `yaml:"loopback_port" env:"GHAUTH_LOOPBACK_PORT" validate:"gte=0,lte=65535"`
	APIBaseURL       string        `yaml:"api_base_url" env:"GHAUTH_API_BASE_URL" validate:"omitempty,http_url"`
	LogLevel         string        `yaml:"log_level" env:"GHAUTH_LOG_LEVEL"`
	Storage          StorageConfig `yaml:"storage" envPrefix:"GHAUTH_STORAGE_"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" env:"BACKEND" validate:"oneof=file redis"`

	// Dir holds the key material for both backends and the values for the file backend.
	Dir string `yaml:"dir" env:"DIR"`

	// Passphrase is only read from the environment.
	Passphrase string `yaml:"-" env:"PASSPHRASE"`

	RedisAddr      string `yaml:"redis_addr" env:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisNamespace string `yaml:"redis_namespace" env:"REDIS_NAMESPACE"`
}

// DefaultClientConfigPath is <user config dir>/ghauth/config.yaml.
func DefaultClientConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, clientConfigFile)
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Target:   "loopback",
		LogLevel: "warn",
		Storage: StorageConfig{
			Backend:        StorageBackendFile,
			RedisNamespace: "ghauth:",
		},
	}
}

// LoadClientConfig reads path (a missing file is not an error), applies environment
// overrides and validates the result.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := defaultClientConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("[LoadClientConfig] read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("[LoadClientConfig] parse %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("[LoadClientConfig] environment: %w", err)
	}
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("[LoadClientConfig] %w", err)
	}
	return cfg, nil
}
