package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluator loop counters, exposed on /metrics.
var (
	EvaluatorTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_evaluator_ticks_total",
		Help: "Evaluator invocations across all tracked users.",
	})

	CommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoattend_commits_total",
		Help: "Attendance records committed automatically, by decision.",
	}, []string{"status"})

	RemindersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_reminders_total",
		Help: "Early off-site reminders emitted.",
	})

	LocationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_location_errors_total",
		Help: "Evaluator ticks aborted because the device location could not be obtained.",
	})

	PersistenceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_persistence_errors_total",
		Help: "Document store write failures during record commits.",
	})
)
