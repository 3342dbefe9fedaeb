package persistence

import "github.com/prometheus/client_golang/prometheus"

var (
	saveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "liftlog",
		Subsystem: "persistence",
		Name:      "save_duration_seconds",
		Help:      "Time spent writing the durable document.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	saveFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "persistence",
		Name:      "save_failures_total",
		Help:      "Number of document writes that failed.",
	})

	savesCoalesced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "persistence",
		Name:      "saves_superseded_total",
		Help:      "Number of queued snapshots replaced by a newer snapshot before being written.",
	})

	documentBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftlog",
		Subsystem: "persistence",
		Name:      "document_size_bytes",
		Help:      "Size of the most recently written document.",
	})
)

func init() {
	prometheus.MustRegister(saveDuration, saveFailures, savesCoalesced, documentBytes)
}
