package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	relayConnections     prometheus.Gauge
	relayMessagesTotal   *prometheus.CounterVec
	relayDroppedTotal    prometheus.Counter
	statsCacheLookups    *prometheus.CounterVec
	activityFailureTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "therapy_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "therapy_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "therapy_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		relayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "therapy_relay_connections",
			Help: "Number of open realtime relay connections.",
		})

		relayMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "therapy_relay_messages_total",
			Help: "Relay frames processed, by event.",
		}, []string{"event"})

		relayDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "therapy_relay_dropped_total",
			Help: "Relay frames dropped because a client queue was full.",
		})

		statsCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "therapy_stats_cache_lookups_total",
			Help: "Student stats cache lookups, by result.",
		}, []string{"result"})

		activityFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "therapy_activity_failures_total",
			Help: "Activity log entries that could not be persisted.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			relayConnections,
			relayMessagesTotal,
			relayDroppedTotal,
			statsCacheLookups,
			activityFailureTotal,
		)
	})
}

// MetricsHandler serves the registered collectors in the Prometheus text format.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// RelayConnections exposes the open connection gauge.
func RelayConnections() prometheus.Gauge {
	RegisterMetrics()
	return relayConnections
}

// RelayMessages exposes the relay frame counter.
func RelayMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return relayMessagesTotal
}

// RelayDropped exposes the dropped frame counter.
func RelayDropped() prometheus.Counter {
	RegisterMetrics()
	return relayDroppedTotal
}

// StatsCacheLookups exposes the stats cache hit/miss counter.
func StatsCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return statsCacheLookups
}

// ActivityFailures exposes the failed activity write counter.
func ActivityFailures() prometheus.Counter {
	RegisterMetrics()
	return activityFailureTotal
}
