package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions      *prometheus.CounterVec
	StoreErrors    prometheus.Counter
	FallbackActive prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqnet_ratelimit_decisions_total",
			Help: "Rate limit checks by scope and outcome (allowed, limited)",
		}, []string{"scope", "outcome"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "resqnet_ratelimit_store_errors_total",
			Help: "Errors returned by the primary rate limit store",
		}),
		FallbackActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "resqnet_ratelimit_fallback_active",
			Help: "1 while checks are served by the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementDecision(scope string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "limited"
	}
	m.Decisions.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) IncrementStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) SetFallback(active bool) {
	if m == nil {
		return
	}
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}
