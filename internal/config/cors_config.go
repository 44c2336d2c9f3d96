package config

import "strings"

// Cors controls which browser origins may call the relay. The default "*" is what
// the web build needs; requests never carry credentials.
type Cors struct {
	Origins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

var _ CorsConfig = Cors{}

// AllowedOrigins is a set of origins; "*" admits every origin.
type AllowedOrigins map[string]struct{}

func NewAllowedOrigins(origins ...string) AllowedOrigins {
	a := make(AllowedOrigins, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			a[o] = struct{}{}
		}
	}
	return a
}

func (a AllowedOrigins) IsWildcard() bool {
	_, ok := a["*"]
	return ok
}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	if a.IsWildcard() {
		return true
	}
	_, ok := a[origin]
	return ok
}

func (c Cors) GetAllowedOrigins() AllowedOrigins {
	if len(c.Origins) == 0 {
		return NewAllowedOrigins("*")
	}
	return NewAllowedOrigins(c.Origins...)
}

func (Cors) GetAllowedMethods() string {
	return "POST, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type"
}
