package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminCommandTotal) }

var adminCommandTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_commands_total",
		Help: "Admin commands by surface (telegram/http), command and status.",
	},
	[]string{"surface", "command", "status"}, // status: ok|error|unauthorized
)

func IncAdminCommand(surface, command, status string) {
	adminCommandTotal.WithLabelValues(norm(surface), norm(command), norm(status)).Inc()
}
