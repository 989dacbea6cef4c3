// Package queuetest provides test doubles for the queue package.
package queuetest

import (
	"context"
	"slices"
	"sync"

	"github.com/flemzord/reaper/internal/queue"
)

// RecordingQueue is a queue.Queue that records every entry it receives.
type RecordingQueue struct {
	// EnqueueFunc, when set, is called before recording. A non-nil error
	// is returned to the caller and the entry is not recorded.
	EnqueueFunc func(ctx context.Context, e queue.Entry) error

	mu      sync.Mutex
	entries []queue.Entry
}

// Compile-time interface check.
var _ queue.Queue = (*RecordingQueue)(nil)

// Enqueue implements queue.Queue.
func (q *RecordingQueue) Enqueue(ctx context.Context, e queue.Entry) (queue.Entry, error) {
	if q.EnqueueFunc != nil {
		if err := q.EnqueueFunc(ctx, e); err != nil {
			return queue.Entry{}, err
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	e.Args = slices.Clone(e.Args)
	q.entries = append(q.entries, e)
	return e, nil
}

// Entries returns a copy of the recorded entries in order.
func (q *RecordingQueue) Entries() []queue.Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.entries)
}

// Len returns the number of recorded entries.
func (q *RecordingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
