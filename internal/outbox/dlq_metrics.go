package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	dlqRequeuedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footprint_service",
		Subsystem: "outbox_dlq",
		Name:      "events_requeued_total",
		Help:      "Number of DLQ entries successfully re-queued into the outbox, labeled by topic.",
	}, []string{"topic"})

	dlqQuarantinedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footprint_service",
		Subsystem: "outbox_dlq",
		Name:      "events_quarantined_total",
		Help:      "Number of DLQ entries quarantined after exhausting retries, labeled by topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(dlqRequeuedCounter, dlqQuarantinedCounter)
}
