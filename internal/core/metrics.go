package core

import "github.com/prometheus/client_golang/prometheus"

var (
	opsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "engine",
		Name:      "operations_total",
		Help:      "Operations executed on the mutation loop, by operation and outcome.",
	}, []string{"op", "outcome"})

	opDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "liftlog",
		Subsystem: "engine",
		Name:      "operation_duration_seconds",
		Help:      "Time an operation held the mutation loop.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
	}, []string{"op"})

	sessionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "sessions",
		Name:      "completed_total",
		Help:      "Workout sessions moved into history.",
	})

	indexRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "lastperf",
		Name:      "rebuilds_total",
		Help:      "Full rebuilds of the last-performance index.",
	})

	routePointsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "gps",
		Name:      "route_points_appended_total",
		Help:      "GPS samples appended to a recording run.",
	})

	routePointsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "gps",
		Name:      "route_points_rejected_total",
		Help:      "GPS samples rejected as out of order or out of range.",
	})

	locationsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "gps",
		Name:      "samples_dropped_total",
		Help:      "GPS samples dropped before reaching a run, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(opsTotal, opDuration, sessionsCompleted, indexRebuilds, routePointsAppended, routePointsRejected, locationsDropped)
}
