package billing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// webhookRequestsTotal counts webhook requests by HTTP status.
	webhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goclaw",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Polar webhook requests by HTTP status.",
	}, []string{"status"})

	// webhookEventsTotal counts verified events by type and outcome.
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goclaw",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Verified Polar webhook events by event type and outcome.",
	}, []string{"event_type", "outcome"})

	webhookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "goclaw",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Polar webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	unmatchedAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "goclaw",
		Subsystem: "billing",
		Name:      "unmatched_customer_alerts_total",
		Help:      "Alerts raised for paid orders naming an unknown customer email.",
	})
)

// eventTypeLabel bounds label cardinality to the types this service knows.
func eventTypeLabel(t string) string {
	if t == EventOrderCreated {
		return t
	}
	return "other"
}
