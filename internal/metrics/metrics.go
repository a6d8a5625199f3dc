package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// batchRuns counts nightly extension runs by result.
	batchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recurd_batch_runs_total",
		Help: "Batch extension runs by result",
	}, []string{"result"})

	// batchTasks counts occurrences touched by the batch.
	batchTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recurd_batch_tasks_total",
		Help: "Occurrences created or deleted by the batch",
	}, []string{"action"})

	batchRulesReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurd_batch_rules_reclaimed_total",
		Help: "Orphan rules deleted by the batch",
	})

	batchRuleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurd_batch_rule_failures_total",
		Help: "Rules whose extension failed during a batch run",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recurd_batch_duration_seconds",
		Help:    "Batch extension duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	// seriesMutations counts edit and delete protocols by scope and outcome.
	seriesMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recurd_series_mutations_total",
		Help: "Series edits and deletes by operation, scope and outcome",
	}, []string{"operation", "scope", "outcome"})
)

// RunStats is the subset of a batch summary that is exported.
type RunStats struct {
	Created   int64
	Deleted   int64
	Reclaimed int64
	Failed    int
	Duration  time.Duration
}

// ObserveBatchRun records one finished batch run.
func ObserveBatchRun(s RunStats) {
	result := "ok"
	if s.Failed > 0 {
		result = "partial"
	}
	batchRuns.WithLabelValues(result).Inc()
	batchTasks.WithLabelValues("created").Add(float64(s.Created))
	batchTasks.WithLabelValues("deleted").Add(float64(s.Deleted))
	batchRulesReclaimed.Add(float64(s.Reclaimed))
	batchRuleFailures.Add(float64(s.Failed))
	batchDuration.Observe(s.Duration.Seconds())
}

// ObserveBatchFailure records a run that aborted before processing rules.
func ObserveBatchFailure() {
	batchRuns.WithLabelValues("error").Inc()
}

// ObserveMutation records a series edit or delete.
func ObserveMutation(operation, scope, outcome string) {
	seriesMutations.WithLabelValues(operation, scope, outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
