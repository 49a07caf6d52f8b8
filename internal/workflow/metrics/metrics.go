package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for workflow transitions.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	TransitionsRefused *prometheus.CounterVec
}

// New creates a new Metrics instance with all workflow module metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_workflow_transitions_total",
			Help: "Total workflow transitions applied, by target status",
		}, []string{"to"}),
		TransitionsRefused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_workflow_transitions_refused_total",
			Help: "Total workflow transitions refused, by target status",
		}, []string{"to"}),
	}
}
