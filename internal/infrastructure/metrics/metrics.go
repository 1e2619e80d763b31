// Package metrics exposes Prometheus collectors for the ranking service:
// standings aggregation, cache efficiency, event handlers, HTTP requests,
// scheduled jobs and outbound webhooks.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ranking"

// Metrics owns a dedicated registry and every collector of the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	aggregations      *prometheus.HistogramVec
	matchesCounted    *prometheus.CounterVec
	recordsSkipped    *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	eventsHandled     *prometheus.CounterVec
	eventDuration     *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	jobRuns           *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	webhookDeliveries *prometheus.CounterVec
}

// New creates collectors and registers them, plus the Go and process
// collectors, in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		aggregations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "standings",
			Name:      "aggregation_seconds",
			Help:      "Time spent computing standings from history.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"window"}),
		matchesCounted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "standings",
			Name:      "matches_counted_total",
			Help:      "Matches that passed the filter and were scored.",
		}, []string{"window"}),
		recordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "standings",
			Name:      "records_skipped_total",
			Help:      "Malformed history records skipped during aggregation.",
		}, []string{"window"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "standings",
			Name:      "cache_lookups_total",
			Help:      "Standings cache lookups by result.",
		}, []string{"result"}),
		eventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handled_total",
			Help:      "Domain event handler executions.",
		}, []string{"event_type", "status"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_seconds",
			Help:      "Domain event handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by outcome.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_seconds",
			Help:      "Scheduled job duration.",
			Buckets:   []float64{.01, .1, .5, 1, 5, 15, 60, 120},
		}, []string{"job"}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Outbound webhook deliveries by outcome.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.aggregations, m.matchesCounted, m.recordsSkipped, m.cacheLookups,
		m.eventsHandled, m.eventDuration,
		m.httpRequests, m.httpDuration,
		m.jobRuns, m.jobDuration,
		m.webhookDeliveries,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ──────────────────────────────────────────────────────────────────────────────
// Observers
// ──────────────────────────────────────────────────────────────────────────────

// ObserveAggregation records one ComputeStandings run.
func (m *Metrics) ObserveAggregation(window string, elapsed time.Duration, counted, skipped int) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(window).Observe(elapsed.Seconds())
	m.matchesCounted.WithLabelValues(window).Add(float64(counted))
	if skipped > 0 {
		m.recordsSkipped.WithLabelValues(window).Add(float64(skipped))
	}
}

// ObserveCache records a standings cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveEventHandled records a domain event handler execution.
func (m *Metrics) ObserveEventHandled(eventType string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.eventsHandled.WithLabelValues(eventType, status(err)).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

// ObserveHTTPRequest records a served request. route is the chi pattern.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveJob records a scheduled job run.
func (m *Metrics) ObserveJob(job string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, status(err)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// ObserveWebhook records an outbound webhook delivery.
func (m *Metrics) ObserveWebhook(err error) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
