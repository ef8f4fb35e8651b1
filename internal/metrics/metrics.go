// Package metrics provides Prometheus metrics exporters for the engine:
// queue depth and scheduling behavior, task processing duration, worker
// invocations, and notification delivery outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "a2a_genengine"

var (
	// QueueDepth is a gauge of tasks currently sitting in each queue state.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of tasks currently in each queue state",
		},
		[]string{"state"}, // queued, processing
	)

	// TaskDuration is a histogram of end-to-end task processing duration,
	// from dequeue to a terminal state being reached.
	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Histogram of task processing duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"task_type", "status"}, // status: completed, failed, cancelled
	)

	// TasksTotal is a counter of tasks that reached a terminal state.
	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of tasks that reached a terminal state",
		},
		[]string{"task_type", "status"},
	)

	// WorkerCallDuration is a histogram of a single worker invocation's
	// wall-clock duration (submit through terminal update).
	WorkerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_call_duration_seconds",
			Help:      "Duration of a worker invocation in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"task_type"},
	)

	// RetriesTotal is a counter of retry attempts scheduled by the queue.
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retry attempts scheduled",
		},
		[]string{"task_type"},
	)

	// NotificationsTotal is a counter of notification delivery attempts.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notification deliveries attempted",
		},
		[]string{"transport", "status"}, // transport: sse, webhook; status: delivered, failed
	)

	// allMetrics is the list of collectors registered by Register.
	allMetrics = []prometheus.Collector{
		QueueDepth,
		TaskDuration,
		TasksTotal,
		WorkerCallDuration,
		RetriesTotal,
		NotificationsTotal,
	}
)

// Register adds all engine collectors to reg. Call once at startup with a
// prometheus.Registry (or prometheus.DefaultRegisterer).
func Register(reg prometheus.Registerer) error {
	for _, c := range allMetrics {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordTaskTerminal records a task reaching a terminal state, along with
// its total processing duration.
func RecordTaskTerminal(taskType, status string, durationSeconds float64) {
	TasksTotal.WithLabelValues(taskType, status).Inc()
	TaskDuration.WithLabelValues(taskType, status).Observe(durationSeconds)
}

// RecordWorkerCall records a completed worker invocation's duration.
func RecordWorkerCall(taskType string, durationSeconds float64) {
	WorkerCallDuration.WithLabelValues(taskType).Observe(durationSeconds)
}

// RecordRetry records a retry attempt being scheduled.
func RecordRetry(taskType string) {
	RetriesTotal.WithLabelValues(taskType).Inc()
}

// RecordNotification records a single notification delivery outcome.
func RecordNotification(transport, status string) {
	NotificationsTotal.WithLabelValues(transport, status).Inc()
}

// SetQueueDepth sets the current gauge value for a queue state.
func SetQueueDepth(state string, n int) {
	QueueDepth.WithLabelValues(state).Set(float64(n))
}
