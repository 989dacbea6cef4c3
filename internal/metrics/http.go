package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds metrics for the admin gateway.
type HTTPMetrics struct {
	// Requests counts served requests.
	// Labels: route, code
	Requests *prometheus.CounterVec

	// Duration tracks request latency in seconds.
	// Labels: route
	Duration *prometheus.HistogramVec
}

// NewHTTPMetrics creates gateway metrics registered with the default registry.
func NewHTTPMetrics() *HTTPMetrics {
	return NewHTTPMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewHTTPMetricsWithRegistry creates gateway metrics registered with a custom registry.
func NewHTTPMetricsWithRegistry(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reaper",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Gateway requests, by route pattern and status code.",
		}, []string{"route", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reaper",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Gateway request latency, by route pattern.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}, []string{"route"}),
	}

	reg.MustRegister(m.Requests, m.Duration)
	return m
}

// ObserveRequest records one served request.
func (m *HTTPMetrics) ObserveRequest(route string, code int, d time.Duration) {
	m.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.Duration.WithLabelValues(route).Observe(d.Seconds())
}
