package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks agency registration saves.
type Metrics struct {
	Saves        *prometheus.CounterVec
	SaveDuration prometheus.Histogram
	Conflicts    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqnet_agency_saves_total",
			Help: "Agency application saves by kind (draft, submit) and outcome",
		}, []string{"kind", "outcome"}),
		SaveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "resqnet_agency_save_duration_seconds",
			Help:    "Duration of agency application saves including document uploads",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqnet_agency_identity_conflicts_total",
			Help: "Submissions refused because an identity number belongs to another agency",
		}, []string{"field"}),
	}
}

// ObserveSave records one save. Call with time.Now() taken at the start.
func (m *Metrics) ObserveSave(kind, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(kind, outcome).Inc()
	m.SaveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementConflict(field string) {
	if m == nil {
		return
	}
	m.Conflicts.WithLabelValues(field).Inc()
}
