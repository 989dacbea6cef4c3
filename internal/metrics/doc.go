// Package metrics provides Prometheus metrics for the expiration sweep and
// the job worker.
//
// Metrics are registered on a caller-supplied registerer so tests can use a
// fresh prometheus.Registry. The gateway serves the default registry on
// /metrics.
//
// Usage:
//
//	expireMetrics := metrics.NewExpireMetrics()
//	queueMetrics := metrics.NewQueueMetrics()
//
//	expirer := expire.New(expire.Options{Metrics: expireMetrics, ...})
//	worker := queue.NewWorker(store, queue.WorkerConfig{Metrics: queueMetrics})
package metrics
