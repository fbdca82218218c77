package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricWorkflowsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conductor_workflows_started_total",
		Help: "Workflows accepted by the registry.",
	})

	metricWorkflowsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conductor_workflows_finished_total",
		Help: "Workflows that reached a terminal status.",
	}, []string{"status"})

	metricGenerationCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conductor_generation_calls_total",
		Help: "Individual coder calls by outcome.",
	}, []string{"outcome"})

	metricReviewVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conductor_review_verdicts_total",
		Help: "Review outcomes including fail-open defaults.",
	}, []string{"verdict"})

	metricRoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conductor_generation_round_seconds",
		Help:    "Wall time of one generation round, initial or revision.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
