package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Wire metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twicorder_requests_total",
			Help: "Total API requests by endpoint and HTTP status",
		},
		[]string{"endpoint", "status"},
	)

	TransportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twicorder_transport_errors_total",
			Help: "Total transport-level request failures by endpoint",
		},
		[]string{"endpoint"},
	)

	RateLimitSleepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twicorder_rate_limit_sleeps_total",
			Help: "Times a worker slept waiting for a rate-limit window reset",
		},
		[]string{"endpoint"},
	)

	// Pipeline metrics
	QueriesEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twicorder_queries_enqueued_total",
			Help: "Queries accepted into the exchange by endpoint",
		},
		[]string{"endpoint"},
	)

	QueriesDedupedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twicorder_queries_deduped_total",
			Help: "Queries dropped because an equivalent query was pending or running",
		},
		[]string{"endpoint"},
	)

	QueriesCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twicorder_queries_completed_total",
			Help: "Queries run to completion by kind",
		},
		[]string{"kind"},
	)

	TweetsSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twicorder_tweets_saved_total",
			Help: "Fresh items written to disk by query kind",
		},
		[]string{"kind"},
	)

	TweetsDedupedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twicorder_tweets_deduped_total",
			Help: "Items dropped by per-query history dedup by kind",
		},
		[]string{"kind"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "twicorder_queue_depth",
			Help: "Pending queries per endpoint queue",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		TransportErrorsTotal,
		RateLimitSleepsTotal,
		QueriesEnqueuedTotal,
		QueriesDedupedTotal,
		QueriesCompletedTotal,
		TweetsSavedTotal,
		TweetsDedupedTotal,
		QueueDepth,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on the given address. Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
