package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	apiRequestsTotal   *prometheus.CounterVec
	apiLatencySeconds  *prometheus.HistogramVec
	apiErrorsTotal     *prometheus.CounterVec
	scoringRunsTotal   *prometheus.CounterVec
	scoringCacheTotal  *prometheus.CounterVec
	scoringEventsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_requests_total",
			Help: "Total number of gradebook API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradebook_latency_seconds",
			Help:    "Latency distribution for gradebook API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_errors_total",
			Help: "Total number of error responses returned by gradebook endpoints.",
		}, []string{"method", "route", "status"})

		scoringRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_scoring_runs_total",
			Help: "Scoring runs by surface and outcome.",
		}, []string{"surface", "outcome"})

		scoringCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_scoring_cache_lookups_total",
			Help: "Latest scan cache lookups by result.",
		}, []string{"result"})

		scoringEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_scoring_events_total",
			Help: "Scoring completion events published by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(apiRequestsTotal, apiLatencySeconds, apiErrorsTotal, scoringRunsTotal, scoringCacheTotal, scoringEventsTotal)
	})
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

// ScoringRuns counts scoring runs per surface ("upload", "repository", "evaluate").
func ScoringRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringRunsTotal
}

// ScoringCacheLookups counts hits and misses of the latest scan cache.
func ScoringCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringCacheTotal
}

// ScoringEvents counts published scoring events.
func ScoringEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringEventsTotal
}
