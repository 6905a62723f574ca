// metrics/metrics.go
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Upstream and cache metrics
var (
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riot_upstream_requests_total",
			Help: "Requests sent to the Riot API by endpoint and response status",
		},
		[]string{"endpoint", "status"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_cache_lookups_total",
			Help: "Match IDs resolved against the cache, split into hits and misses",
		},
		[]string{"result"},
	)
	DetailFetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "match_detail_fetch_failures_total",
			Help: "Match detail fetches that failed and were dropped from a history",
		},
	)
)

// Model script metrics
var (
	ModelRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_script_duration_seconds",
			Help:    "Wall time of model-execution scripts",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"script", "status"},
	)
)

// HTTP metrics
var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served by route and status code",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(UpstreamRequests, CacheLookups, DetailFetchFailures)
	prometheus.MustRegister(ModelRunDuration)
	prometheus.MustRegister(HTTPRequests)
}
