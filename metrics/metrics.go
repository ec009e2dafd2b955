// Package metrics exposes Prometheus instrumentation for recovery calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecoveryAttempts counts recovery calls, successful or not.
	RecoveryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "axon_recovery_attempts_total",
		Help: "Total number of conversation recovery attempts",
	})

	// RecoveryFailures counts failed recoveries by error kind.
	RecoveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "axon_recovery_failures_total",
		Help: "Total number of failed recoveries by error kind",
	}, []string{"kind"})

	// RecoveredCheckpoints counts checkpoints that contributed to successful
	// recoveries.
	RecoveredCheckpoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "axon_recovered_checkpoints_total",
		Help: "Total number of checkpoints merged into recovered conversations",
	})

	// RecoveryDuration observes end-to-end recovery latency.
	RecoveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "axon_recovery_duration_seconds",
		Help:    "End-to-end duration of recovery calls",
		Buckets: prometheus.DefBuckets,
	})
)
