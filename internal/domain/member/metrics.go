package member

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/eligibility"
)

// Metrics instruments the member registry. A nil *Metrics records nothing.
type Metrics struct {
	AlertsComputed *prometheus.CounterVec
	Rejections     *prometheus.CounterVec
	MembersCreated prometheus.Counter
	UploadFailures *prometheus.CounterVec
	SearchLatency  prometheus.Histogram
}

// NewMetrics registers the registry metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AlertsComputed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "padron_alerts_computed_total",
			Help: "Eligibility alerts attached to members on read, by kind",
		}, []string{"kind"}),

		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "padron_submission_rejections_total",
			Help: "Member registrations rejected by the validator, by rule",
		}, []string{"rule"}),

		MembersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "padron_members_created_total",
			Help: "Members registered",
		}),

		UploadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "padron_attachment_upload_failures_total",
			Help: "Attachment uploads that failed after the member was stored, by kind",
		}, []string{"kind"}),

		SearchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "padron_member_search_duration_seconds",
			Help:    "Duration of member searches including alert evaluation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) observeAlerts(alerts []eligibility.Alert) {
	if m == nil {
		return
	}
	for _, a := range alerts {
		m.AlertsComputed.WithLabelValues(string(a.Kind)).Inc()
	}
}

func (m *Metrics) incRejection(rule string) {
	if m != nil {
		m.Rejections.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) incCreated() {
	if m != nil {
		m.MembersCreated.Inc()
	}
}

func (m *Metrics) incUploadFailure(kind string) {
	if m != nil {
		m.UploadFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) observeSearch(d time.Duration) {
	if m != nil {
		m.SearchLatency.Observe(d.Seconds())
	}
}
