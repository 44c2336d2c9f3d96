package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.TokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteToken, ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))
	// Any other method on the token route
	s.RegisterRouteHandler(RouteToken, ChainMiddleware(s.MethodNotAllowedHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.LoggingMiddleware, s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteMetrics, ChainMiddleware(s.metrics.handler().ServeHTTP, s.RecoverMiddleware))
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"breaker": s.upstream.state().String(),
		})
	}
}
