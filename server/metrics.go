package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

// Exchange outcomes
const (
	outcomeForwarded   = "forwarded"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "upstream_unavailable"
)

// metrics lives on its own registry so every Server (and every test) starts from zero.
type metrics struct {
	registry     *prometheus.Registry
	exchanges    *prometheus.CounterVec
	breakerGauge prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_token_exchanges_total",
				Help: "Token exchange requests by outcome",
			},
			[]string{"outcome"},
		),
		breakerGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_upstream_breaker_state",
			Help: "State of the circuit breaker in front of GitHub (0=closed, 1=half-open, 2=open)",
		}),
	}
	m.registry.MustRegister(
		m.exchanges,
		m.breakerGauge,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) exchange(outcome string) {
	m.exchanges.WithLabelValues(outcome).Inc()
}

func (m *metrics) breakerState(state gobreaker.State) {
	switch state {
	case gobreaker.StateClosed:
		m.breakerGauge.Set(0)
	case gobreaker.StateHalfOpen:
		m.breakerGauge.Set(1)
	case gobreaker.StateOpen:
		m.breakerGauge.Set(2)
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
