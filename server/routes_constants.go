package server

// Route path constants
const (
	RouteToken   = "/token"
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

const contentTypeJSON = "application/json; charset=utf-8"
