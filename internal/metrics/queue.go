package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueueMetrics holds metrics for the job worker.
type QueueMetrics struct {
	// JobsEnqueued counts entries added to the queue.
	// Labels: handler
	JobsEnqueued *prometheus.CounterVec

	// JobsProcessed counts entries run by the worker.
	// Labels: handler, status (success, failed)
	JobsProcessed *prometheus.CounterVec

	// JobDuration tracks handler run time in seconds.
	// Labels: handler
	JobDuration *prometheus.HistogramVec

	// Pending tracks entries waiting to be claimed.
	Pending prometheus.Gauge

	// Purged counts finished entries removed by queue cleanup.
	Purged prometheus.Counter
}

// NewQueueMetrics creates queue metrics registered with the default registry.
func NewQueueMetrics() *QueueMetrics {
	return NewQueueMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewQueueMetricsWithRegistry creates queue metrics registered with a custom registry.
func NewQueueMetricsWithRegistry(reg prometheus.Registerer) *QueueMetrics {
	m := &QueueMetrics{
		JobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "queue",
			Name:      "jobs_enqueued_total",
			Help:      "Entries added to the job queue, by handler.",
		}, []string{"handler"}),
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Entries run by the worker, by handler and status.",
		}, []string{"handler", "status"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reaper",
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Handler run time, by handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reaper",
			Subsystem: "queue",
			Name:      "pending",
			Help:      "Entries waiting to be claimed.",
		}),
		Purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "queue",
			Name:      "purged_total",
			Help:      "Finished entries removed by queue cleanup.",
		}),
	}

	reg.MustRegister(m.JobsEnqueued, m.JobsProcessed, m.JobDuration, m.Pending, m.Purged)
	return m
}

// RecordEnqueued increments the enqueue counter for handler.
func (m *QueueMetrics) RecordEnqueued(handler string) {
	m.JobsEnqueued.WithLabelValues(handler).Inc()
}

// RecordProcessed records one finished entry.
func (m *QueueMetrics) RecordProcessed(handler string, d time.Duration, err error) {
	m.JobsProcessed.WithLabelValues(handler, statusOf(err)).Inc()
	m.JobDuration.WithLabelValues(handler).Observe(d.Seconds())
}

// SetPending sets the pending gauge.
func (m *QueueMetrics) SetPending(n int) {
	m.Pending.Set(float64(n))
}

// RecordPurged adds n purged entries.
func (m *QueueMetrics) RecordPurged(n int64) {
	if n > 0 {
		m.Purged.Add(float64(n))
	}
}
