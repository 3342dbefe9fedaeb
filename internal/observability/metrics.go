// Package observability holds process-wide watermark gauges.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	documentSavedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftlog",
		Subsystem: "persistence",
		Name:      "last_document_saved_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful document write.",
	})
	sessionCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftlog",
		Subsystem: "sessions",
		Name:      "last_session_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recently completed workout session.",
	})
)

func init() {
	prometheus.MustRegister(documentSavedGauge, sessionCompletedGauge)
}

// RecordDocumentSaved updates the save watermark gauge.
func RecordDocumentSaved(ts time.Time) {
	if ts.IsZero() {
		return
	}
	documentSavedGauge.Set(float64(ts.Unix()))
}

// RecordSessionCompleted updates the completion watermark gauge.
func RecordSessionCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sessionCompletedGauge.Set(float64(ts.Unix()))
}
