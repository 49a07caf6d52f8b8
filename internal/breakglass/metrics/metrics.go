package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for emergency-access sessions.
type Metrics struct {
	Activations       prometheus.Counter
	ActivationsDenied *prometheus.CounterVec
	Deactivations     prometheus.Counter
	ActiveSessions    prometheus.Gauge
	SessionActions    prometheus.Counter
}

// New creates a new Metrics instance with all break-glass module metrics registered.
func New() *Metrics {
	return &Metrics{
		Activations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_breakglass_activations_total",
			Help: "Total break-glass sessions activated",
		}),
		ActivationsDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_breakglass_activations_denied_total",
			Help: "Total break-glass activation attempts denied, by reason",
		}, []string{"reason"}),
		Deactivations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_breakglass_deactivations_total",
			Help: "Total break-glass sessions deactivated",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "verdant_breakglass_active_sessions",
			Help: "Break-glass sessions currently active",
		}),
		SessionActions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_breakglass_session_actions_total",
			Help: "Total audited actions performed under an active break-glass session",
		}),
	}
}
