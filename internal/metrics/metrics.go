// Package metrics defines the Prometheus metrics exported by the auth
// service. All metrics live in the default registry and are served on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "userauth"

// AuthOperationsTotal counts auth operations.
// Labels:
//   - operation: "register", "login" or "reset_password"
//   - outcome: "success", "invalid_credentials", "already_exists",
//     "not_found", "invalid_input" or "error"
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of auth operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// SessionActive is 1 while a user is logged in to this process.
var SessionActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_active",
		Help:      "Whether a user session is currently active (1) or not (0).",
	},
)

// BackupsTotal counts database backups by result ("success" or "error").
var BackupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backups_total",
		Help:      "Total number of database backups attempted, by result.",
	},
	[]string{"result"},
)
