package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-github-auth/internal/config"
	"github.com/rs/zerolog/log"
)

// Server is the token-exchange relay. It holds the OAuth client secrets for runtimes
// that cannot keep one and forwards code exchanges to GitHub.
type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	metrics  *metrics
	upstream *upstream
}

type Option func(*Server)

// WithUpstreamClient replaces the HTTP client used to reach GitHub's token endpoint.
func WithUpstreamClient(client *http.Client) Option {
	return func(s *Server) {
		s.upstream.client = client
	}
}

func New(cfg config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Server New] config is required")
	}
	if cfg.GetUpstreamTokenURL() == "" {
		return nil, fmt.Errorf("[Server New] upstream token url is required")
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		metrics: newMetrics(),
	}
	s.upstream = newUpstream(cfg.GetUpstreamTokenURL(), cfg.GetUpstreamTimeout(), cfg.GetBreakerSettings(), s.metrics)
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	if !cfg.GetWebCredentials().Complete() && !cfg.GetFallbackCredentials().Complete() {
		log.Warn().Msg("no complete OAuth credential pair configured; every exchange will fail")
	}

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func logError(method, path, message string) {
	log.Error().Msgf("[%-19s] %s %s", colouredMethod(method), path, Red+message+ResetColor)
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if colour, ok := methodColors[method]; ok {
		return colour + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
