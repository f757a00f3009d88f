package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(verificationsTotal, rateLimitedTotal) }

var (
	// result: ok|key_not_found|key_inactive|key_expired|key_max_uses_reached|error
	verificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_verifications_total",
			Help: "Credential redemptions by result.",
		},
		[]string{"result"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter, per scope.",
		},
		[]string{"scope"},
	)
)

func IncVerification(result string) {
	verificationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncRateLimited(scope string) {
	rateLimitedTotal.WithLabelValues(norm(scope)).Inc()
}
