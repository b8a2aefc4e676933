package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_db_query_duration_seconds",
			Help:    "Duration of relational analytics queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_db_query_errors_total",
			Help: "Failed relational analytics queries",
		},
		[]string{"operation"},
	)

	DocstoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_docstore_query_duration_seconds",
			Help:    "Duration of document store reads in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "operation"},
	)

	DatastoreFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_datastore_fallbacks_total",
			Help: "Metric computations that fell back from the document store to the relational store",
		},
		[]string{"metric"},
	)

	DegradedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_degraded_results_total",
			Help: "Metric results served with default or lossy data",
		},
		[]string{"metric", "reason"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "analytics_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_cache_lookups_total",
			Help: "Analytics cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_cache_invalidations_total",
			Help: "Cache invalidations triggered by domain events",
		},
		[]string{"source"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_http_request_duration_seconds",
			Help:    "Duration of analytics API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	WebsocketSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_ws_subscribers",
			Help: "Open live dashboard websocket connections",
		},
	)
)

func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

func RecordDocstoreQuery(collection, operation string, duration time.Duration) {
	DocstoreQueryDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

func RecordFallback(metric string) {
	DatastoreFallbacks.WithLabelValues(metric).Inc()
}

func RecordDegraded(metric, reason string) {
	DegradedResults.WithLabelValues(metric, reason).Inc()
}

func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func RecordInvalidation(source string) {
	CacheInvalidations.WithLabelValues(source).Inc()
}
