package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit ledger.
type Metrics struct {
	EntriesAppended  *prometheus.CounterVec
	BreakGlassTagged prometheus.Counter
	MirrorFailures   prometheus.Counter
}

// New creates a new Metrics instance with all audit module metrics registered.
func New() *Metrics {
	return &Metrics{
		EntriesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_audit_entries_appended_total",
			Help: "Total audit entries appended, by action",
		}, []string{"action"}),
		BreakGlassTagged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_audit_break_glass_entries_total",
			Help: "Total audit entries tagged as break-glass actions",
		}),
		MirrorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_audit_mirror_failures_total",
			Help: "Total failures delivering audit entries to mirror sinks",
		}),
	}
}

// IncrementAppended records an appended entry.
func (m *Metrics) IncrementAppended(action string, breakGlass bool) {
	m.EntriesAppended.WithLabelValues(action).Inc()
	if breakGlass {
		m.BreakGlassTagged.Inc()
	}
}

// IncrementMirrorFailures records a mirror delivery failure.
func (m *Metrics) IncrementMirrorFailures() {
	m.MirrorFailures.Inc()
}
