// Package metrics holds the Prometheus collectors of the matching service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SwipesTotal counts persisted swipes by action.
	SwipesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_swipes_total",
			Help: "Swipes recorded, by action",
		},
		[]string{"action"},
	)

	MatchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_matches_created_total",
			Help: "Match records created on a mutual like",
		},
	)

	Unmatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_unmatches_total",
			Help: "Matches moved to unmatched, by cause (unmatch, undo)",
		},
		[]string{"cause"},
	)

	QuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_swipe_quota_rejections_total",
			Help: "Swipes rejected by the daily limit",
		},
	)

	// DiamondSpends counts ledger calls by reason and result (ok, failed).
	DiamondSpends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_diamond_spends_total",
			Help: "Diamond spend attempts by reason and result",
		},
		[]string{"reason", "result"},
	)

	// SignalFallbacks counts scoring signals replaced by their neutral default.
	SignalFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_signal_fallbacks_total",
			Help: "Scoring signal lookups that fell back to a default",
		},
		[]string{"signal"},
	)

	CompatCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_compat_cache_lookups_total",
			Help: "Compatibility cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	ClientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_client_requests_total",
			Help: "Outbound collaborator requests by client and result",
		},
		[]string{"client", "result"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matching_circuit_breaker_state",
			Help: "Circuit breaker state per client (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_events_total",
			Help: "Matching events by type and result (published, failed, dropped)",
		},
		[]string{"type", "result"},
	)

	DiscoveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_discovery_duration_seconds",
			Help:    "Time spent building one discovery page",
			Buckets: prometheus.DefBuckets,
		},
	)

	DiscoveryCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matching_discovery_candidates",
			Help:    "Candidates surviving filters per discovery request, by source",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"source"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
