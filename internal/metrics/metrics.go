package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "capcal_web"

// Metrics owns every collector of the web server on its own registry.
type Metrics struct {
	registry          *prometheus.Registry
	collaboratorCalls *prometheus.CounterVec
	collaboratorTime  *prometheus.HistogramVec
	attribution       *prometheus.CounterVec
	deepLinks         *prometheus.CounterVec
	contactMessages   *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		collaboratorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_calls_total",
			Help:      "Calls to remote collaborator endpoints by outcome.",
		}, []string{"endpoint", "outcome"}),
		collaboratorTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_call_duration_seconds",
			Help:      "Wall time of collaborator calls including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		attribution: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attribution_events_total",
			Help:      "Install attribution events by outcome.",
		}, []string{"outcome"}),
		deepLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deep_links_total",
			Help:      "Deep-link decisions by kind and platform.",
		}, []string{"kind", "platform"}),
		contactMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contact_messages_total",
			Help:      "Contact form submissions by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Served HTTP requests by route pattern and status class.",
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.collaboratorCalls,
		m.collaboratorTime,
		m.attribution,
		m.deepLinks,
		m.contactMessages,
		m.httpRequests,
	)
	return m
}

func (m *Metrics) ObserveCall(endpoint, outcome string, elapsed time.Duration) {
	m.collaboratorCalls.WithLabelValues(endpoint, outcome).Inc()
	m.collaboratorTime.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) AttributionRecorded(outcome string) {
	m.attribution.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DeepLinkResolved(kind, platform string) {
	m.deepLinks.WithLabelValues(kind, platform).Inc()
}

func (m *Metrics) ContactSubmitted(outcome string) {
	m.contactMessages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RequestServed(route string, status int) {
	m.httpRequests.WithLabelValues(route, statusClass(status)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
