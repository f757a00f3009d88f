package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(bankFetchDuration) }

var bankFetchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bank_feed_fetch_duration_seconds",
		Help:    "Latency of bank feed fetches by provider and result.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"provider", "result"}, // result: ok|error
)

func ObserveBankFetch(provider, result string, d time.Duration) {
	bankFetchDuration.WithLabelValues(norm(provider), norm(result)).Observe(d.Seconds())
}
