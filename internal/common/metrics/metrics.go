// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat requests by outcome",
		},
		[]string{"outcome"},
	)

	ChatRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chat_request_duration_seconds",
			Help: "Duration of chat request processing in seconds",
		},
		[]string{"outcome"},
	)

	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Total number of language model provider calls by result",
		},
		[]string{"component", "result"},
	)

	RetrievalTierTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_tier_total",
			Help: "Retrieval tier used to answer product searches",
		},
		[]string{"tier"},
	)

	ResponseCacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_events_total",
			Help: "Response cache hits and misses",
		},
		[]string{"event"},
	)
)
