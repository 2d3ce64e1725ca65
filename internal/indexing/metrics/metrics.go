package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueTasksTotal counts task execution outcomes per queue
	QueueTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_queue_tasks_total",
			Help: "Task execution outcomes (success, retry, dropped)",
		},
		[]string{"queue", "outcome"},
	)

	// QueueTaskDuration tracks executor latency
	QueueTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txsync_queue_task_duration_seconds",
			Help:    "Task executor latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// QueueDepth tracks pending and in-flight tasks
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "txsync_queue_depth",
			Help: "Tasks waiting or running per project queue",
		},
		[]string{"project", "state"},
	)

	// RemoteCallsTotal tracks calls to data providers
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_remote_calls_total",
			Help: "Total number of remote provider calls",
		},
		[]string{"provider", "method"},
	)

	// RemoteErrorsTotal tracks failed provider calls
	RemoteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_remote_errors_total",
			Help: "Total number of remote provider errors",
		},
		[]string{"provider", "error_type"},
	)

	// RemoteLatency tracks provider call latency
	RemoteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txsync_remote_latency_seconds",
			Help:    "Remote provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// RateLimitWait tracks how long calls waited for a rate window slot
	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txsync_rate_limit_wait_seconds",
			Help:    "Time spent waiting for rate limiter admission",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
		[]string{"provider"},
	)

	// RemoteLatestUnit tracks the latest block/day known on the remote side
	RemoteLatestUnit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "txsync_remote_latest_unit",
			Help: "Latest block number or day index reported by the provider",
		},
		[]string{"project"},
	)

	// SyncTicksTotal counts update passes per project
	SyncTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_sync_ticks_total",
			Help: "Update passes per project by result",
		},
		[]string{"project", "result"},
	)

	// UnitsEnqueued counts units scheduled for fetching
	UnitsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_units_enqueued_total",
			Help: "Blocks or days enqueued for fetching",
		},
		[]string{"project", "source"},
	)

	// RecordsWritten counts records persisted
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsync_records_written_total",
			Help: "Normalized records written to the repository",
		},
		[]string{"project"},
	)

	// DBConnectionPoolUsage tracks open/max connection ratio
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "txsync_db_connection_pool_usage_percent",
			Help: "Open database connections as a percentage of the pool limit",
		},
	)
)
