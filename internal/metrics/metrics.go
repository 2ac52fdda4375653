package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teesheet",
			Name:      "backend_requests_total",
			Help:      "Booking backend requests by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	rosterMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teesheet",
			Name:      "roster_mutations_total",
			Help:      "Roster mutations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	billingRollbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "teesheet",
			Name:      "billing_rollbacks_total",
			Help:      "Optimistic billing updates rolled back after a failed call.",
		},
	)

	reconcileOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teesheet",
			Name:      "reconcile_outcomes_total",
			Help:      "Reconciliation outcomes by route and result.",
		},
		[]string{"route", "result"},
	)

	staleSearches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "teesheet",
			Name:      "stale_search_results_total",
			Help:      "Search responses discarded because a newer query superseded them.",
		},
	)

	adminRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teesheet",
			Name:      "admin_requests_total",
			Help:      "Admin surface requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			backendRequests,
			rosterMutations,
			billingRollbacks,
			reconcileOutcomes,
			staleSearches,
			adminRequests,
		)
	})
}

// IncBackend increments the backend request counter.
func IncBackend(endpoint, status string) {
	backendRequests.WithLabelValues(endpoint, status).Inc()
}

// IncRosterMutation increments the roster mutation counter.
func IncRosterMutation(operation, result string) {
	rosterMutations.WithLabelValues(operation, result).Inc()
}

// IncBillingRollback counts an optimistic billing rollback.
func IncBillingRollback() {
	billingRollbacks.Inc()
}

// IncReconcileOutcome increments the reconciliation outcome counter.
func IncReconcileOutcome(route, result string) {
	reconcileOutcomes.WithLabelValues(route, result).Inc()
}

// IncStaleSearch counts a discarded stale search response.
func IncStaleSearch() {
	staleSearches.Inc()
}

// IncAdmin increments the admin surface counter for an endpoint label.
func IncAdmin(endpoint string) {
	adminRequests.WithLabelValues(endpoint).Inc()
}
