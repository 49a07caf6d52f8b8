package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for governed report content.
type Metrics struct {
	DataPointUpdates prometheus.Counter
	Rollovers        prometheus.Counter
	EditsBlocked     *prometheus.CounterVec
}

// New creates a new Metrics instance with all report module metrics registered.
func New() *Metrics {
	return &Metrics{
		DataPointUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_report_datapoint_updates_total",
			Help: "Total data point updates applied",
		}),
		Rollovers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_report_rollovers_total",
			Help: "Total data points rolled over into a new period",
		}),
		EditsBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_report_edits_blocked_total",
			Help: "Total content mutations refused, by gate",
		}, []string{"gate"}),
	}
}
