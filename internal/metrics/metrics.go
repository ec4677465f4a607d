// Package metrics provides Prometheus metrics for the gateway.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "listing_gateway"

// latencyBuckets covers fast local lookups up to slow backend searches.
var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

var (
	inboundLabels  = []string{"method", "status_code", "path_prefix"}
	upstreamLabels = []string{"method", "status_code"}
	failureLabels  = []string{"method", "cause"}
)

// Metrics groups the gateway collectors and the registry they live in.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	UpstreamFailures  *prometheus.CounterVec
}

// New builds a private registry holding the runtime collectors plus the
// inbound ("http") and backend ("upstream") series.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Inbound requests by method, status and route prefix.",
		}, inboundLabels),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "Inbound request latency, backend round trip included.",
			Buckets: latencyBuckets,
		}, inboundLabels),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "Inbound requests currently being served.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "upstream", Name: "request_duration_seconds",
			Help:    "Backend call latency, failed calls included.",
			Buckets: latencyBuckets,
		}, []string{"method"}),
		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upstream", Name: "responses_total",
			Help: "Backend replies by method and status, relayed as is.",
		}, upstreamLabels),
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upstream", Name: "failures_total",
			Help: "Backend calls that ended without a reply, by cause.",
		}, failureLabels),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.UpstreamFailures,
	)
	return m
}

// ObserveRequest records one finished inbound request.
func (m *Metrics) ObserveRequest(method string, status int, path string, d time.Duration) {
	if m == nil {
		return
	}
	labels := []string{NormalizeMethod(method), strconv.Itoa(status), NormalizePath(path)}
	m.RequestsTotal.WithLabelValues(labels...).Inc()
	m.RequestDuration.WithLabelValues(labels...).Observe(d.Seconds())
}

// ObserveUpstream records a backend call that produced a reply.
func (m *Metrics) ObserveUpstream(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	method = NormalizeMethod(method)
	m.UpstreamDuration.WithLabelValues(method).Observe(d.Seconds())
	m.UpstreamResponses.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// ObserveUpstreamFailure records a backend call that ended without a reply.
func (m *Metrics) ObserveUpstreamFailure(method, cause string, d time.Duration) {
	if m == nil {
		return
	}
	method = NormalizeMethod(method)
	m.UpstreamDuration.WithLabelValues(method).Observe(d.Seconds())
	m.UpstreamFailures.WithLabelValues(method, cause).Inc()
}

// NormalizeMethod keeps the routed methods and folds anything else into "other".
func NormalizeMethod(method string) string {
	switch method {
	case "GET", "HEAD", "POST", "PUT", "DELETE", "PATCH", "OPTIONS":
		return method
	}
	return "other"
}

// routePrefixes are the only path label values besides "other".
var routePrefixes = []string{"/api/proxy", "/healthz", "/proxy/status", "/metrics"}

// NormalizePath maps a request path onto the route it was served by. Backend
// paths below /api/proxy are never used as labels.
func NormalizePath(path string) string {
	for _, prefix := range routePrefixes {
		rest, ok := strings.CutPrefix(path, prefix)
		if ok && (rest == "" || rest[0] == '/' || rest[0] == '?') {
			return prefix
		}
	}
	return "other"
}
