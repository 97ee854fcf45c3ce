// Package metrics provides Prometheus metrics for the quote engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QuoteRequestsTotal is a counter of quote computations by pair and method.
	QuoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_requests_total",
			Help: "Total number of quote computations",
		},
		[]string{"pair", "method", "status"},
	)

	// QuoteAggregationDuration is a histogram of quote aggregation duration.
	QuoteAggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_aggregation_duration_seconds",
			Help:    "Duration of quote aggregation operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// DeviationRejectionsTotal is a counter of whole-call deviation rejections.
	DeviationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deviation_rejections_total",
			Help: "Total number of aggregations rejected because a source exceeded the deviation ceiling",
		},
		[]string{"pair"},
	)

	// AdapterFailuresTotal is a counter of per-source quote failures.
	AdapterFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_failures_total",
			Help: "Total number of adapter quote failures excluded from aggregation",
		},
		[]string{"adapter", "reason"},
	)

	// QuotesUsedTotal is a counter of quotes that contributed to an aggregate.
	QuotesUsedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_used_total",
			Help: "Total number of source quotes that contributed to an aggregate",
		},
		[]string{"adapter", "pair"},
	)

	// FeedFetchesTotal is a counter of external feed fetches.
	FeedFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetches_total",
			Help: "Total number of external feed fetches",
		},
		[]string{"feed", "status"},
	)

	// FeedFetchDuration is a histogram of external feed fetch latencies.
	FeedFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Latency of external feed fetches",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"feed"},
	)

	// RegisteredPairs is a gauge of currently provisioned pair aggregators.
	RegisteredPairs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "registered_pairs",
			Help: "Number of pair aggregators currently registered",
		},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

// Init initializes Prometheus metrics registry.
func Init() {
	prometheus.MustRegister(
		QuoteRequestsTotal,
		QuoteAggregationDuration,
		DeviationRejectionsTotal,
		AdapterFailuresTotal,
		QuotesUsedTotal,
		FeedFetchesTotal,
		FeedFetchDuration,
		RegisteredPairs,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      http.DefaultServeMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordQuoteRequest records a quote computation outcome.
func RecordQuoteRequest(pair, method, status string, duration time.Duration) {
	QuoteRequestsTotal.WithLabelValues(pair, method, status).Inc()
	QuoteAggregationDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordDeviationRejection records a whole-call deviation rejection.
func RecordDeviationRejection(pair string) {
	DeviationRejectionsTotal.WithLabelValues(pair).Inc()
}

// RecordAdapterFailure records a per-source quote failure.
func RecordAdapterFailure(adapter, reason string) {
	AdapterFailuresTotal.WithLabelValues(adapter, reason).Inc()
}

// RecordQuoteUsed records a source quote contributing to an aggregate.
func RecordQuoteUsed(adapter, pair string) {
	QuotesUsedTotal.WithLabelValues(adapter, pair).Inc()
}

// RecordFeedFetch records an external feed fetch.
func RecordFeedFetch(feed, status string, duration time.Duration) {
	FeedFetchesTotal.WithLabelValues(feed, status).Inc()
	FeedFetchDuration.WithLabelValues(feed).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
