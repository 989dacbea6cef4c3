package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/reaper/internal/queue"
)

const (
	// DefaultExpireSchedule runs the expire sweep once a day.
	DefaultExpireSchedule = "30 3 * * *"

	// DefaultCleanupSchedule purges finished queue entries hourly.
	DefaultCleanupSchedule = "0 * * * *"

	// DefaultCleanupAge is how long finished entries are kept.
	DefaultCleanupAge = 24 * time.Hour
)

// ExpireTriggerJob enqueues a default expire sweep. The sweep itself runs
// on the queue worker, which fans it out into sub-jobs.
type ExpireTriggerJob struct {
	Queue        queue.Queue
	Handler      string // queue handler name of the expire worker
	Priority     int
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultExpireSchedule
}

// Compile-time interface check.
var _ Job = (*ExpireTriggerJob)(nil)

// Name implements Job.
func (j *ExpireTriggerJob) Name() string { return "expire" }

// Schedule implements Job.
func (j *ExpireTriggerJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultExpireSchedule
}

// Run enqueues one sweep entry with no arguments.
func (j *ExpireTriggerJob) Run(ctx context.Context) error {
	e, err := j.Queue.Enqueue(ctx, queue.Entry{
		Priority: j.Priority,
		Handler:  j.Handler,
	})
	if err != nil {
		return fmt.Errorf("cron: enqueue expire sweep: %w", err)
	}
	j.logger().Info("cron: expire sweep enqueued", "id", e.ID, "priority", e.Priority)
	return nil
}

func (j *ExpireTriggerJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// QueueCleaner is the subset of queue.Store needed by QueueCleanupJob.
type QueueCleaner interface {
	PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error)
}

// QueueCleanupJob removes done and failed queue entries older than MaxAge.
type QueueCleanupJob struct {
	Store        QueueCleaner
	MaxAge       time.Duration // zero = DefaultCleanupAge
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultCleanupSchedule

	now func() time.Time
}

// Compile-time interface check.
var _ Job = (*QueueCleanupJob)(nil)

// Name implements Job.
func (j *QueueCleanupJob) Name() string { return "queue_cleanup" }

// Schedule implements Job.
func (j *QueueCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultCleanupSchedule
}

// Run purges finished entries.
func (j *QueueCleanupJob) Run(ctx context.Context) error {
	maxAge := j.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultCleanupAge
	}
	now := time.Now
	if j.now != nil {
		now = j.now
	}

	n, err := j.Store.PurgeFinished(ctx, now().Add(-maxAge))
	if err != nil {
		return fmt.Errorf("cron: purge finished queue entries: %w", err)
	}
	if n > 0 {
		logger := j.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info("cron: purged finished queue entries", "count", n)
	}
	return nil
}
