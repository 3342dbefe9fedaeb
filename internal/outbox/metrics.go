package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Number of outbox events successfully published to Kafka.",
	})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Number of outbox events whose publish failed, by what happened next.",
	}, []string{"result"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "liftlog",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent fetching, delivering, and marking outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	pendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftlog",
		Subsystem: "outbox",
		Name:      "pending_events",
		Help:      "Outbox events waiting for delivery or retry.",
	})

	quarantinedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftlog",
		Subsystem: "outbox",
		Name:      "quarantined_events",
		Help:      "Outbox events quarantined after exhausting retries.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, pendingGauge, quarantinedGauge)
}
