package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(ordersTotal, credentialsIssued, vpnSalesTotal, reconcileRuns)
}

var (
	// status: issued|existing|pending|no_tier|error
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order checks by outcome.",
		},
		[]string{"status"},
	)

	credentialsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentials_issued_total",
			Help: "Newly issued credentials by tier and origin.",
		},
		[]string{"tier", "created_by"},
	)

	// status: sold|existing|pending|out_of_stock|error
	vpnSalesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpn_sales_total",
			Help: "VPN purchase attempts by outcome.",
		},
		[]string{"status"},
	)

	// result: issued|pending|error
	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_reconcile_total",
			Help: "Pending orders processed by the background reconciler.",
		},
		[]string{"result"},
	)
)

func IncOrder(status string) {
	ordersTotal.WithLabelValues(norm(status)).Inc()
}

func IncCredentialIssued(tier, createdBy string) {
	credentialsIssued.WithLabelValues(norm(tier), norm(createdBy)).Inc()
}

func IncVPNSale(status string) {
	vpnSalesTotal.WithLabelValues(norm(status)).Inc()
}

func IncReconcile(result string) {
	reconcileRuns.WithLabelValues(norm(result)).Inc()
}
