// Package metrics provides Prometheus metrics for chart-gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream fetch outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeMiss          = "miss"
	OutcomeUpstreamError = "upstream_error"
	OutcomeAuthError     = "auth_error"
)

var (
	// UpstreamFetchTotal counts upstream chart fetches by outcome.
	UpstreamFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chartgw",
			Name:      "upstream_fetch_total",
			Help:      "Total number of upstream chart fetches",
		},
		[]string{"source", "chart", "outcome"},
	)

	// UpstreamFetchDuration measures upstream fetch latency.
	UpstreamFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chartgw",
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Duration of upstream chart fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source", "chart"},
	)

	// CollectedPairs observes how many (date, region) pairs a request asked for.
	CollectedPairs = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chartgw",
			Name:      "collected_pairs",
			Help:      "Distribution of (date, region) pairs per chart request",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
		[]string{"chart"},
	)

	// HTTPRequestsTotal counts API responses by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chartgw",
			Name:      "http_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"route", "status"},
	)
)

// RecordFetch records one upstream fetch.
func RecordFetch(source, chart, outcome string, seconds float64) {
	UpstreamFetchTotal.WithLabelValues(source, chart, outcome).Inc()
	UpstreamFetchDuration.WithLabelValues(source, chart).Observe(seconds)
}

// RecordPairs records the size of one collection.
func RecordPairs(chart string, pairs int) {
	CollectedPairs.WithLabelValues(chart).Observe(float64(pairs))
}

// RecordRequest records one API response.
func RecordRequest(route string, status int) {
	HTTPRequestsTotal.WithLabelValues(route, statusClass(status)).Inc()
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
