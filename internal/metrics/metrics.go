package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the portal.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	SubmitFailures  *prometheus.CounterVec
	CheckIns        *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_registrations_submitted_total",
			Help: "Registrations accepted, by kind.",
		}, []string{"kind"}),
		SubmitFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_registration_submit_failures_total",
			Help: "Rejected or failed submissions, by reason.",
		}, []string{"reason"}),
		CheckIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_checkins_total",
			Help: "Check-in attempts, by result.",
		}, []string{"result"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_notifications_total",
			Help: "Confirmation notifications, by result.",
		}, []string{"result"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// NewNop returns collectors bound to a private registry, for tests and tools.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) Submitted(kind string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind).Inc()
}

func (m *Metrics) SubmitFailed(reason string) {
	if m == nil {
		return
	}
	m.SubmitFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) CheckIn(result string) {
	if m == nil {
		return
	}
	m.CheckIns.WithLabelValues(result).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}
