package queue

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Store. It is used by tests and by one-shot
// CLI runs that do not need persistence.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// Compile-time interface check.
var _ Store = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{now: time.Now}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, e Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	e = Prepare(e, q.now())
	q.entries = append(q.entries, e)
	return e, nil
}

// Claim implements Store.
func (q *MemoryQueue) Claim(ctx context.Context) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.entries {
		if q.entries[i].Status == StatusPending {
			q.entries[i].Status = StatusRunning
			return cloneEntry(q.entries[i]), true, nil
		}
	}
	return Entry{}, false, nil
}

// Complete implements Store.
func (q *MemoryQueue) Complete(_ context.Context, id string) error {
	return q.finish(id, StatusDone, "")
}

// Fail implements Store.
func (q *MemoryQueue) Fail(_ context.Context, id string, reason string) error {
	return q.finish(id, StatusFailed, reason)
}

func (q *MemoryQueue) finish(id string, status Status, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries[i].Status = status
			q.entries[i].Error = reason
			q.entries[i].FinishedAt = q.now()
			return nil
		}
	}
	return ErrNotFound
}

// Pending implements Store.
func (q *MemoryQueue) Pending(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.entries {
		if e.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

// List implements Store.
func (q *MemoryQueue) List(_ context.Context, limit int) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, min(limit, len(q.entries)))
	for i := len(q.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneEntry(q.entries[i]))
	}
	return out, nil
}

// PurgeFinished implements Store.
func (q *MemoryQueue) PurgeFinished(_ context.Context, cutoff time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	before := len(q.entries)
	q.entries = slices.DeleteFunc(q.entries, func(e Entry) bool {
		finished := e.Status == StatusDone || e.Status == StatusFailed
		return finished && e.FinishedAt.Before(cutoff)
	})
	return int64(before - len(q.entries)), nil
}

// Entries returns a snapshot of every entry in insertion order.
func (q *MemoryQueue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, len(q.entries))
	for i, e := range q.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Prepare fills the fields Enqueue owns. Store implementations call it
// before persisting an entry.
func Prepare(e Entry, now time.Time) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.EnqueuedAt = now
	e.Status = StatusPending
	e.Error = ""
	e.FinishedAt = time.Time{}
	e.Args = slices.Clone(e.Args)
	return e
}

func cloneEntry(e Entry) Entry {
	e.Args = slices.Clone(e.Args)
	return e
}
