package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "synth",
		Name:      "provider_requests_total",
		Help:      "Outbound event provider requests by provider and outcome",
	}, []string{"provider", "outcome"})

	searchDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace:  "synth",
		Name:       "event_search_duration_seconds",
		Help:       "Duration of aggregated event searches",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})

	eventsReturned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "synth",
		Name:      "events_returned_total",
		Help:      "Total events returned to callers after dedup and filtering",
	})
)

func init() {
	prometheus.MustRegister(providerRequests, searchDuration, eventsReturned)
}

// ObserveProviderRequest records one provider call and its outcome
func ObserveProviderRequest(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	providerRequests.WithLabelValues(provider, outcome).Inc()
}

// ObserveSearchDuration records how long an aggregated search took
func ObserveSearchDuration(d time.Duration) {
	searchDuration.Observe(d.Seconds())
}

// AddEventsReturned counts events handed back to a caller
func AddEventsReturned(n int) {
	eventsReturned.Add(float64(n))
}
