package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendum",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendum",
			Name:      "appointment_transitions_total",
			Help:      "Appointment lifecycle transitions by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	conflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agendum",
			Name:      "conflicts_detected_total",
			Help:      "Confirmations and reschedules rejected by the overlap check.",
		},
	)

	txRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agendum",
			Name:      "transaction_retries_total",
			Help:      "Transactions retried after a concurrent-write abort.",
		},
	)

	slotQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendum",
			Name:      "slot_queries_total",
			Help:      "Slot generation requests by cache outcome.",
		},
		[]string{"cache"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, transitions, conflicts, txRetries, slotQueries)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTransition records one lifecycle operation outcome ("ok", "conflict",
// "error").
func IncTransition(operation, outcome string) {
	transitions.WithLabelValues(operation, outcome).Inc()
}

// IncConflict counts an overlap rejection.
func IncConflict() {
	conflicts.Inc()
}

// IncTxRetry counts a retried store transaction.
func IncTxRetry() {
	txRetries.Inc()
}

// IncSlotQuery records a slot request with its cache outcome ("hit",
// "miss", "bypass").
func IncSlotQuery(cache string) {
	slotQueries.WithLabelValues(cache).Inc()
}
