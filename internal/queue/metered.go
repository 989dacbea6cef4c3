package queue

import (
	"context"
	"time"

	"github.com/flemzord/reaper/internal/metrics"
)

// Metered wraps a Store and counts enqueued entries per handler.
type Metered struct {
	Store
	metrics *metrics.QueueMetrics
}

// NewMetered returns s instrumented with m.
func NewMetered(s Store, m *metrics.QueueMetrics) *Metered {
	return &Metered{Store: s, metrics: m}
}

// Enqueue implements Queue.
func (q *Metered) Enqueue(ctx context.Context, e Entry) (Entry, error) {
	out, err := q.Store.Enqueue(ctx, e)
	if err != nil {
		return out, err
	}
	q.metrics.RecordEnqueued(out.Handler)
	return out, nil
}

// PurgeFinished implements Store.
func (q *Metered) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := q.Store.PurgeFinished(ctx, cutoff)
	if err != nil {
		return n, err
	}
	q.metrics.RecordPurged(n)
	return n, nil
}
