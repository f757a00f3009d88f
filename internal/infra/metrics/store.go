package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(storeConflicts, storeOpDuration) }

var (
	storeConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_update_conflicts_total",
			Help: "Optimistic version conflicts seen by record store updates.",
		},
		[]string{"backend", "collection"},
	)

	storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Record store operation latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"backend", "op", "result"}, // op: load|replace|update
	)
)

func IncStoreConflict(backend, collection string) {
	storeConflicts.WithLabelValues(norm(backend), norm(collection)).Inc()
}

func ObserveStoreOp(backend, op, result string, d time.Duration) {
	storeOpDuration.WithLabelValues(norm(backend), norm(op), norm(result)).Observe(d.Seconds())
}
