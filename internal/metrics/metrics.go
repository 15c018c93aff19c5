package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_runs_completed_total",
			Help: "Total number of research runs by terminal status",
		},
		[]string{"status", "stage"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepresearch_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"stage"},
	)

	SubtasksPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_subtasks_per_run",
			Help:    "Number of subtasks produced by the splitter",
			Buckets: []float64{0, 1, 2, 4, 6, 8, 12, 16},
		},
	)

	// Worker metrics
	WorkerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_worker_outcomes_total",
			Help: "Total number of settled workers by status",
		},
		[]string{"status"},
	)

	WorkerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_worker_duration_seconds",
			Help:    "Wall-clock duration of a single research worker",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)

	WorkersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deepresearch_workers_in_flight",
			Help: "Workers currently running",
		},
	)

	// Tool metrics
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_tool_calls_total",
			Help: "Total number of tool invocations by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_tool_cache_lookups_total",
			Help: "Tool cache lookups by tool and result (hit, miss, error)",
		},
		[]string{"tool", "result"},
	)
)
