package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IntakeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgw_intake_requests_total",
			Help: "Contact intake requests by terminal outcome",
		},
		[]string{"outcome"}, // ok|honeypot|rate_limited|validation_failed|...
	)

	EmailDispatchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadgw_email_dispatch_seconds",
			Help:    "Email provider round trip including status polling",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"result"}, // ok|acs_failed|acs_error
	)

	LeadsArchivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgw_leads_archived_total",
			Help: "Lead archive lifecycle counter by stage",
		},
		[]string{"stage"}, // recorded|record_failed|analytics|analytics_failed|poison
	)
)

var once sync.Once

// MustRegister registers collectors once; serve and worker share a process in tests.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			IntakeRequestsTotal,
			EmailDispatchSeconds,
			LeadsArchivedTotal,
		)
	})
}
