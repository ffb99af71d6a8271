package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks administrator actions on applications.
type Metrics struct {
	Decisions *prometheus.CounterVec
	Queries   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqnet_admin_decisions_total",
			Help: "Application decisions by verdict and outcome",
		}, []string{"decision", "outcome"}),
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqnet_admin_queries_total",
			Help: "Admin query emails by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementDecision(decision, outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(decision, outcome).Inc()
}

func (m *Metrics) IncrementQuery(outcome string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(outcome).Inc()
}
