package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultInserted  = "inserted"
	resultUpdated   = "updated"
	resultUnchanged = "unchanged"
	resultRejected  = "rejected"
)

var (
	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "milestone",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Total number of imported rows broken down by result.",
	}, []string{"result"})

	importWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "milestone",
		Subsystem: "import",
		Name:      "warnings_total",
		Help:      "Total number of repaired values broken down by warning code.",
	}, []string{"code"})

	importAuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "milestone",
		Subsystem: "import",
		Name:      "audit_failures_total",
		Help:      "Total number of audit entries that could not be written.",
	})

	importRowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "milestone",
		Subsystem: "import",
		Name:      "row_duration_seconds",
		Help:      "Time spent validating and writing a single row.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	importRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "milestone",
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Total number of import runs broken down by outcome.",
	}, []string{"outcome"})
)

func recordRow(result string) {
	importRows.WithLabelValues(result).Inc()
}

func recordWarning(code string) {
	if code == "" {
		code = "other"
	}
	importWarnings.WithLabelValues(code).Inc()
}

func recordAuditFailure() {
	importAuditFailures.Inc()
}

func observeRow(start time.Time) {
	importRowDuration.Observe(time.Since(start).Seconds())
}

func recordRun(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	importRuns.WithLabelValues(outcome).Inc()
}
