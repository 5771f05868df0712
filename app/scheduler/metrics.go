package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pass invocations partitioned by pass name and outcome (ok, error, skipped, locked)
	passRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_scheduler_pass_runs_total",
			Help: "Total number of scheduler pass invocations",
		},
		[]string{"pass", "result"},
	)

	// Wall time of passes that actually ran
	passDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadflow_scheduler_pass_duration_seconds",
			Help:    "Scheduler pass durations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pass"},
	)

	// Step dispatches partitioned by canonical step type and outcome
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_sequence_dispatch_total",
			Help: "Total number of sequence step dispatches",
		},
		[]string{"type", "result"},
	)

	// Lyric requests handled partitioned by stage (generate, send) and outcome
	lyricRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_lyric_requests_total",
			Help: "Total number of lyric requests processed",
		},
		[]string{"stage", "result"},
	)
)

const (
	resultOK      = "ok"
	resultError   = "error"
	resultSkipped = "skipped"
	resultLocked  = "locked"
	resultUnknown = "unknown"
)
