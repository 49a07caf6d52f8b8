package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the permission engine.
type Metrics struct {
	ChecksTotal   *prometheus.CounterVec
	GrantsIssued  prometheus.Counter
	GrantsRevoked prometheus.Counter
}

// New creates a new Metrics instance with all access module metrics registered.
func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_permission_checks_total",
			Help: "Total permission checks, by outcome",
		}, []string{"outcome"}),
		GrantsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_section_grants_issued_total",
			Help: "Total section access grants issued",
		}),
		GrantsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_section_grants_revoked_total",
			Help: "Total section access grants revoked",
		}),
	}
}

// IncrementCheck records a permission check outcome ("allowed" or "denied").
func (m *Metrics) IncrementCheck(allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.ChecksTotal.WithLabelValues(outcome).Inc()
}
