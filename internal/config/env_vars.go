package config

import "strings"

type EnvVars struct {
	Port        string `env:"PORT" envDefault:"8080"`
	AppName     string `env:"APP_NAME" envDefault:"GitHub Token Relay"`
	Environment string `env:"ENV" envDefault:"DEV"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetEnv returns DEV unless ENV says otherwise
func (e EnvVars) GetEnv() string {
	if e.Environment == "" {
		return "DEV"
	}
	return e.Environment
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}
