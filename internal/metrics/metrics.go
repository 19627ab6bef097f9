// Package metrics exposes request accounting for the browse sessions in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/animescout/animescout/internal/jikan"
)

const namespace = "animescout"

// Metrics owns a private registry and the collectors recorded by the service.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	discarded *prometheus.CounterVec
	failures  *prometheus.CounterVec
	sessions  prometheus.Gauge
	upstream  prometheus.Gauge
}

// New creates the collectors and registers them together with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "browse",
			Name:      "requests_total",
			Help:      "Catalog requests issued after the debounce window settled.",
		}, []string{"stream"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "browse",
			Name:      "responses_discarded_total",
			Help:      "Responses dropped because a newer request superseded them.",
		}, []string{"stream"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "browse",
			Name:      "request_failures_total",
			Help:      "Catalog requests that ended in an empty result because of an error.",
		}, []string{"stream", "reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open browse sessions.",
		}),
		upstream: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jikan_up",
			Help:      "Result of the last Jikan health probe (1 healthy, 0 failing).",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.discarded,
		m.failures,
		m.sessions,
		m.upstream,
	)
	return m
}

func (m *Metrics) RequestIssued(stream string) {
	m.requests.WithLabelValues(stream).Inc()
}

func (m *Metrics) ResponseDiscarded(stream string) {
	m.discarded.WithLabelValues(stream).Inc()
}

func (m *Metrics) RequestFailed(stream string, err error) {
	m.failures.WithLabelValues(stream, Reason(err)).Inc()
}

func (m *Metrics) SessionOpened() {
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	m.sessions.Dec()
}

// SetUpstreamHealthy records the outcome of a health probe.
func (m *Metrics) SetUpstreamHealthy(ok bool) {
	if ok {
		m.upstream.Set(1)
		return
	}
	m.upstream.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Reason classifies a fetch error into a low-cardinality label value.
func Reason(err error) string {
	switch {
	case errors.Is(err, jikan.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, jikan.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, jikan.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, jikan.ErrAPIError):
		return "network"
	default:
		return "other"
	}
}
