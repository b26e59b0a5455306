package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "requests_created_total", Help: "Total pickup requests created"})
	ClaimsTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "claims_total", Help: "Total successful request claims"})
	ClaimConflicts   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "claim_conflicts_total", Help: "Claims rejected because the request was no longer pending"})
	CompletionsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "completions_total", Help: "Total completed requests"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxi_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxi_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
