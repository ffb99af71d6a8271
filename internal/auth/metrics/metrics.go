package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks account activation and login.
type Metrics struct {
	CodeRequests  *prometheus.CounterVec
	Verifications *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	EmailDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CodeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqnet_auth_code_requests_total",
			Help: "OTP requests by outcome (NEW_PROFILE, OTP_SENT, OTP_RESENT, or an error code)",
		}, []string{"outcome"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqnet_auth_otp_verifications_total",
			Help: "OTP verifications by outcome",
		}, []string{"outcome"}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqnet_auth_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		EmailDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "resqnet_auth_verification_email_duration_seconds",
			Help:    "Time spent handing a verification email to the mail server",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementCodeRequest(outcome string) {
	if m == nil {
		return
	}
	m.CodeRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementVerification(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

// ObserveEmail records one verification email send. Call with time.Now() taken before sending.
func (m *Metrics) ObserveEmail(start time.Time) {
	if m == nil {
		return
	}
	m.EmailDuration.Observe(time.Since(start).Seconds())
}
