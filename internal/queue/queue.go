// Package queue provides a minimal background job queue: entries carry a
// handler name and string arguments, and a serial Worker runs them in
// insertion order. Priorities and the dont-fork flag are recorded for
// handlers that propagate them but do not affect scheduling.
package queue

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned when an entry ID does not exist.
var ErrNotFound = errors.New("queue: entry not found")

// Entry is one unit of work.
type Entry struct {
	ID       string   `json:"id"`
	Priority int      `json:"priority"`
	DontFork bool     `json:"dont_fork"`
	Handler  string   `json:"handler"`
	Args     []string `json:"args"`

	// CreatedAt is the logical creation time. Sub-jobs inherit it from
	// the entry that spawned them, so it may predate EnqueuedAt.
	CreatedAt time.Time `json:"created_at"`

	EnqueuedAt time.Time `json:"enqueued_at"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Queue accepts new entries.
type Queue interface {
	// Enqueue stores e as pending and returns it with ID, EnqueuedAt,
	// CreatedAt (when zero) and Status filled in.
	Enqueue(ctx context.Context, e Entry) (Entry, error)
}

// Store is a Queue that a Worker can drain.
type Store interface {
	Queue

	// Claim marks the oldest pending entry running and returns it.
	// ok is false when nothing is pending.
	Claim(ctx context.Context) (e Entry, ok bool, err error)

	// Complete marks a running entry done.
	Complete(ctx context.Context, id string) error

	// Fail marks a running entry failed with reason.
	Fail(ctx context.Context, id string, reason string) error

	// Pending returns the number of entries waiting to be claimed.
	Pending(ctx context.Context) (int, error)

	// List returns up to limit entries, most recently enqueued first.
	List(ctx context.Context, limit int) ([]Entry, error)

	// PurgeFinished deletes done and failed entries finished before cutoff.
	PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error)
}
