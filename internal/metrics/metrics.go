// Package metrics holds the Prometheus collectors of the tracker service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "interntrack",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "interntrack",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "interntrack",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	// StatusTransitions counts applied status changes by source and target.
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "interntrack",
			Subsystem: "applications",
			Name:      "status_transitions_total",
			Help:      "Total number of application status changes.",
		},
		[]string{"from", "to"},
	)

	// ApplicationsDeleted counts records removed, single or bulk.
	ApplicationsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "interntrack",
			Subsystem: "applications",
			Name:      "deleted_total",
			Help:      "Total number of deleted applications.",
		},
	)

	// RemindersSent counts reminder events published by the scheduler.
	RemindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "interntrack",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Total number of reminder events published.",
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		StatusTransitions,
		ApplicationsDeleted,
		RemindersSent,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request. path should be a route template,
// not the raw URL, to keep label cardinality bounded.
func ObserveHTTP(method, path string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// InFlight tracks a request for the lifetime of the returned func.
func InFlight() (done func()) {
	httpInFlight.Inc()
	return httpInFlight.Dec
}
