package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine-level counters. Registered on the default registry and exposed via
// promhttp on /metrics.
var (
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_expiry_sweeps_total",
		Help: "Number of expiry sweep runs.",
	})

	SessionsAutoSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_sessions_auto_submitted_total",
		Help: "Sessions terminated by the expiry sweeper.",
	})

	SessionsForceSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_sessions_force_submitted_total",
		Help: "Sessions terminated by the violation monitor.",
	})

	SweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_sweep_session_failures_total",
		Help: "Per-session auto-submit failures during sweeps (retried next tick).",
	})

	JudgeRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_judge_requests_total",
		Help: "Testcase executions sent to the external judge.",
	})

	JudgeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_judge_failures_total",
		Help: "Testcase executions that failed to reach the external judge.",
	})

	SubmissionsJudged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_submissions_judged_total",
		Help: "Coding submissions judged, labelled by final verdict.",
	}, []string{"verdict"})
)
