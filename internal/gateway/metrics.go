package gateway

import "sync/atomic"

// Metrics tracks gateway-level counters using atomic operations for lock-free concurrency.
type Metrics struct {
	requests  atomic.Int64
	errors    atomic.Int64
	triggered atomic.Int64
	rejected  atomic.Int64
}

// RecordRequest records a served request; 5xx responses count as errors.
func (m *Metrics) RecordRequest(status int) {
	m.requests.Add(1)
	if status >= 500 {
		m.errors.Add(1)
	}
}

// RecordTrigger records an expire request accepted by the admin API.
func (m *Metrics) RecordTrigger() {
	m.triggered.Add(1)
}

// RecordRejected records an expire request refused as malformed.
func (m *Metrics) RecordRejected() {
	m.rejected.Add(1)
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:  m.requests.Load(),
		Errors:    m.errors.Load(),
		Triggered: m.triggered.Load(),
		Rejected:  m.rejected.Load(),
	}
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Requests  int64 `json:"requests"`
	Errors    int64 `json:"errors"`
	Triggered int64 `json:"triggered"`
	Rejected  int64 `json:"rejected"`
}
