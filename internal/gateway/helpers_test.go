package gateway

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/flemzord/reaper/internal/cron"
	"github.com/flemzord/reaper/internal/expire"
	"github.com/flemzord/reaper/internal/queue"
)

// fakeStore is a Pinger that fails when err is set.
type fakeStore struct {
	err error
}

func (s *fakeStore) Ping(context.Context) error { return s.err }

// fakeQueue serves a fixed set of entries.
type fakeQueue struct {
	entries []queue.Entry
	err     error
	limit   int
}

func (q *fakeQueue) Pending(context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	n := 0
	for _, e := range q.entries {
		if e.Status == queue.StatusPending {
			n++
		}
	}
	return n, nil
}

func (q *fakeQueue) List(_ context.Context, limit int) ([]queue.Entry, error) {
	q.limit = limit
	if q.err != nil {
		return nil, q.err
	}
	return q.entries[:min(limit, len(q.entries))], nil
}

// fakeTrigger records requests and returns a canned entry.
type fakeTrigger struct {
	mu   sync.Mutex
	reqs []expire.Request
	err  error
}

func (f *fakeTrigger) Enqueue(_ context.Context, req expire.Request) (queue.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return queue.Entry{}, f.err
	}
	f.reqs = append(f.reqs, req)
	return queue.Entry{ID: "entry-1", Handler: expire.HandlerName, Args: expire.Args(req)}, nil
}

func (f *fakeTrigger) requests() []expire.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]expire.Request(nil), f.reqs...)
}

// fakeScheduler returns fixed job statuses.
type fakeScheduler struct {
	jobs []cron.JobStatus
}

func (s *fakeScheduler) Status() []cron.JobStatus { return s.jobs }

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// newHandlerGateway returns a Gateway ready for direct handler calls,
// without a listener.
func newHandlerGateway(t *testing.T) *Gateway {
	t.Helper()
	g := &Gateway{
		logger:  discardLogger(),
		metrics: &Metrics{},
	}
	g.config.defaults()
	return g
}
