package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExpireMetrics holds metrics for the expiration sweep.
type ExpireMetrics struct {
	// ItemsPurged counts content items physically deleted by a delete pass.
	ItemsPurged prometheus.Counter

	// OrphansDeleted counts orphan rows removed.
	// Labels: table (post_content, post_thread)
	OrphansDeleted *prometheus.CounterVec

	// SubJobsEnqueued counts sub-jobs enqueued by a default sweep.
	// Labels: kind (delete, user, hook)
	SubJobsEnqueued *prometheus.CounterVec

	// UsersExpired counts per-user expiration runs and the items they touched.
	UsersExpired      prometheus.Counter
	UserItemsExpired  prometheus.Counter
	HooksInvoked      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	LastDeletePassRun prometheus.Gauge
}

// NewExpireMetrics creates expire metrics registered with the default registry.
func NewExpireMetrics() *ExpireMetrics {
	return NewExpireMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewExpireMetricsWithRegistry creates expire metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewExpireMetricsWithRegistry(reg prometheus.Registerer) *ExpireMetrics {
	m := &ExpireMetrics{
		ItemsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "expire",
			Name:      "items_purged_total",
			Help:      "Soft-deleted items physically removed after the retention floor.",
		}),
		OrphansDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "expire",
			Name:      "orphans_deleted_total",
			Help:      "Denormalized rows removed because no item references their uri-id.",
		}, []string{"table"}),
		SubJobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "expire",
			Name:      "subjobs_enqueued_total",
			Help:      "Sub-jobs enqueued by default sweeps, by kind.",
		}, []string{"kind"}),
		UsersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "expire",
			Name:      "users_expired_total",
			Help:      "Per-user expiration runs completed.",
		}),
		UserItemsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "expire",
			Name:      "user_items_expired_total",
			Help:      "Items marked deleted by per-user expiration.",
		}),
		HooksInvoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "expire",
			Name:      "hooks_invoked_total",
			Help:      "Expire hook invocations, by hook and status.",
		}, []string{"hook", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reaper",
			Subsystem: "expire",
			Name:      "request_duration_seconds",
			Help:      "Duration of expire requests, by kind and status.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"kind", "status"}),
		LastDeletePassRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reaper",
			Subsystem: "expire",
			Name:      "last_delete_pass_timestamp_seconds",
			Help:      "Unix time of the last successful delete pass.",
		}),
	}

	reg.MustRegister(
		m.ItemsPurged,
		m.OrphansDeleted,
		m.SubJobsEnqueued,
		m.UsersExpired,
		m.UserItemsExpired,
		m.HooksInvoked,
		m.RequestDuration,
		m.LastDeletePassRun,
	)
	return m
}

// RecordItemPurged increments the purged item counter.
func (m *ExpireMetrics) RecordItemPurged() {
	m.ItemsPurged.Inc()
}

// RecordOrphans adds n removed rows for table.
func (m *ExpireMetrics) RecordOrphans(table string, n int64) {
	if n > 0 {
		m.OrphansDeleted.WithLabelValues(table).Add(float64(n))
	}
}

// RecordSubJob increments the enqueued counter for kind.
func (m *ExpireMetrics) RecordSubJob(kind string) {
	m.SubJobsEnqueued.WithLabelValues(kind).Inc()
}

// RecordUserExpired records one per-user run that touched n items.
func (m *ExpireMetrics) RecordUserExpired(n int64) {
	m.UsersExpired.Inc()
	if n > 0 {
		m.UserItemsExpired.Add(float64(n))
	}
}

// RecordHook records one hook invocation.
func (m *ExpireMetrics) RecordHook(name string, err error) {
	m.HooksInvoked.WithLabelValues(name, statusOf(err)).Inc()
}

// ObserveRequest records the duration of one request.
func (m *ExpireMetrics) ObserveRequest(kind string, d time.Duration, err error) {
	m.RequestDuration.WithLabelValues(kind, statusOf(err)).Observe(d.Seconds())
}

// RecordDeletePass stamps the completion time of a delete pass.
func (m *ExpireMetrics) RecordDeletePass(at time.Time) {
	m.LastDeletePassRun.Set(float64(at.Unix()))
}

func statusOf(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
