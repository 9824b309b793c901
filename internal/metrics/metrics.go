// Package metrics holds the pipeline's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "etl"

	sourceLabel    = "source"
	resultLabel    = "result"
	taskLabel      = "task"
	outcomeLabel   = "outcome"
	extractorLabel = "extractor"
)

// Task outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeRetry   = "retry"
	OutcomeDropped = "dropped"
)

var recordsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_total",
		Help:      "records loaded, partitioned by source and load result",
	},
	[]string{sourceLabel, resultLabel},
)

var tasksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_total",
		Help:      "background tasks executed, partitioned by type and outcome",
	},
	[]string{taskLabel, outcomeLabel},
)

var taskRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_retries_total",
		Help:      "background task retries scheduled",
	},
	[]string{taskLabel},
)

var extractorRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractor_runs_total",
		Help:      "extraction source runs, partitioned by extractor and outcome",
	},
	[]string{extractorLabel, outcomeLabel},
)

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(recordsTotal)
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(taskRetriesTotal)
	prometheus.MustRegister(extractorRunsTotal)
}

func IncreaseRecordsMetric(source, result string) {
	recordsTotal.With(prometheus.Labels{sourceLabel: source, resultLabel: result}).Inc()
}

func IncreaseTasksMetric(task, outcome string) {
	tasksTotal.With(prometheus.Labels{taskLabel: task, outcomeLabel: outcome}).Inc()
}

func IncreaseTaskRetriesMetric(task string) {
	taskRetriesTotal.With(prometheus.Labels{taskLabel: task}).Inc()
}

func IncreaseExtractorRunsMetric(extractor, outcome string) {
	extractorRunsTotal.With(prometheus.Labels{extractorLabel: extractor, outcomeLabel: outcome}).Inc()
}
