// Package metrics exposes Prometheus collectors for the HTTP layer, seat
// accounting and authorization decisions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/seatledger/pkg/access"
)

const namespace = "seatledger"

// Seat operation outcomes.
const (
	OutcomeAdded    = "added"
	OutcomeExisting = "existing"
	OutcomeRejected = "rejected"
	OutcomeRemoved  = "removed"
	OutcomeAbsent   = "absent"
	OutcomeError    = "error"
)

// Metrics holds the collectors. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	seatOperations *prometheus.CounterVec
	authzDecisions *prometheus.CounterVec
	eventsSent     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		seatOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "seat_operations_total",
				Help:      "Seat admissions and releases by outcome",
			},
			[]string{"operation", "outcome"}, // operation: add/remove
		),
		authzDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "access",
				Name:      "decisions_total",
				Help:      "Authorization decisions by rule and result",
			},
			[]string{"rule", "grant", "result"},
		),
		eventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Domain events handed to the broker",
			},
			[]string{"subject", "result"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one completed HTTP request. route is the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveSeat records a seat operation outcome.
func (m *Metrics) ObserveSeat(operation, outcome string) {
	m.seatOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveDecision implements access.Observer.
func (m *Metrics) ObserveDecision(rule access.Rule, grant access.Grant, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.authzDecisions.WithLabelValues(rule.String(), string(grant), result).Inc()
}

// ObserveEvent records a publish attempt.
func (m *Metrics) ObserveEvent(subject string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsSent.WithLabelValues(subject, result).Inc()
}
