package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/flemzord/reaper/internal/queue"
	"github.com/jmoiron/sqlx"
)

var queueColumns = []string{
	"id", "priority", "dont_fork", "handler", "args",
	"created", "enqueued", "status", "error", "finished",
}

// queueRow mirrors a workerqueue row.
type queueRow struct {
	ID       string `db:"id"`
	Priority int    `db:"priority"`
	DontFork bool   `db:"dont_fork"`
	Handler  string `db:"handler"`
	Args     string `db:"args"`
	Created  string `db:"created"`
	Enqueued string `db:"enqueued"`
	Status   string `db:"status"`
	Error    string `db:"error"`
	Finished string `db:"finished"`
}

func (r queueRow) entry() (queue.Entry, error) {
	e := queue.Entry{
		ID:       r.ID,
		Priority: r.Priority,
		DontFork: r.DontFork,
		Handler:  r.Handler,
		Status:   queue.Status(r.Status),
		Error:    r.Error,
	}
	if err := json.Unmarshal([]byte(r.Args), &e.Args); err != nil {
		return queue.Entry{}, fmt.Errorf("sqlite: decode args of %s: %w", r.ID, err)
	}
	var err error
	if e.CreatedAt, err = parseTime(r.Created); err != nil {
		return queue.Entry{}, err
	}
	if e.EnqueuedAt, err = parseTime(r.Enqueued); err != nil {
		return queue.Entry{}, err
	}
	if e.FinishedAt, err = parseTime(r.Finished); err != nil {
		return queue.Entry{}, err
	}
	return e, nil
}

// QueueStore is a persistent queue.Store backed by the workerqueue table.
// Entries are claimed in insertion order.
type QueueStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Compile-time interface guard.
var _ queue.Store = (*QueueStore)(nil)

// NewQueueStore wraps an open database.
func NewQueueStore(db *sqlx.DB) *QueueStore {
	return &QueueStore{db: db, now: time.Now}
}

// Enqueue implements queue.Queue.
func (s *QueueStore) Enqueue(ctx context.Context, e queue.Entry) (queue.Entry, error) {
	e = queue.Prepare(e, s.now())
	args := e.Args
	if args == nil {
		args = []string{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return queue.Entry{}, fmt.Errorf("sqlite: encode args: %w", err)
	}

	q := builder.Insert("workerqueue").
		Columns(queueColumns...).
		Values(
			e.ID, e.Priority, boolInt(e.DontFork), e.Handler, string(raw),
			formatTime(e.CreatedAt), formatTime(e.EnqueuedAt), string(e.Status), "", "",
		)
	if _, err := execBuilder(ctx, s.db, q); err != nil {
		return queue.Entry{}, fmt.Errorf("sqlite: enqueue %s: %w", e.Handler, err)
	}
	return e, nil
}

// Claim implements queue.Store.
func (s *QueueStore) Claim(ctx context.Context) (queue.Entry, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return queue.Entry{}, false, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row queueRow
	q := builder.
		Select(queueColumns...).
		From("workerqueue").
		Where(sq.Eq{"status": string(queue.StatusPending)}).
		OrderBy("seq").
		Limit(1)
	if err := getBuilder(ctx, tx, &row, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return queue.Entry{}, false, nil
		}
		return queue.Entry{}, false, fmt.Errorf("sqlite: select pending: %w", err)
	}

	upd := builder.Update("workerqueue").
		Set("status", string(queue.StatusRunning)).
		Where(sq.Eq{"id": row.ID})
	if _, err := execBuilder(ctx, tx, upd); err != nil {
		return queue.Entry{}, false, fmt.Errorf("sqlite: claim %s: %w", row.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return queue.Entry{}, false, fmt.Errorf("sqlite: commit: %w", err)
	}

	row.Status = string(queue.StatusRunning)
	e, err := row.entry()
	if err != nil {
		return queue.Entry{}, false, err
	}
	return e, true, nil
}

// Complete implements queue.Store.
func (s *QueueStore) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, queue.StatusDone, "")
}

// Fail implements queue.Store.
func (s *QueueStore) Fail(ctx context.Context, id string, reason string) error {
	return s.finish(ctx, id, queue.StatusFailed, reason)
}

func (s *QueueStore) finish(ctx context.Context, id string, status queue.Status, reason string) error {
	q := builder.Update("workerqueue").
		Set("status", string(status)).
		Set("error", reason).
		Set("finished", formatTime(s.now())).
		Where(sq.Eq{"id": id})
	n, err := execBuilder(ctx, s.db, q)
	if err != nil {
		return fmt.Errorf("sqlite: finish %s: %w", id, err)
	}
	if n == 0 {
		return queue.ErrNotFound
	}
	return nil
}

// Pending implements queue.Store.
func (s *QueueStore) Pending(ctx context.Context) (int, error) {
	var n int
	q := builder.Select("COUNT(*)").
		From("workerqueue").
		Where(sq.Eq{"status": string(queue.StatusPending)})
	if err := getBuilder(ctx, s.db, &n, q); err != nil {
		return 0, fmt.Errorf("sqlite: count pending: %w", err)
	}
	return n, nil
}

// List implements queue.Store.
func (s *QueueStore) List(ctx context.Context, limit int) ([]queue.Entry, error) {
	if limit <= 0 {
		return []queue.Entry{}, nil
	}
	var rows []queueRow
	q := builder.
		Select(queueColumns...).
		From("workerqueue").
		OrderBy("seq DESC").
		Limit(uint64(limit))
	if err := selectBuilder(ctx, s.db, &rows, q); err != nil {
		return nil, fmt.Errorf("sqlite: list queue: %w", err)
	}

	out := make([]queue.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// PurgeFinished implements queue.Store.
func (s *QueueStore) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	q := builder.Delete("workerqueue").
		Where(sq.And{
			sq.Eq{"status": []string{string(queue.StatusDone), string(queue.StatusFailed)}},
			sq.NotEq{"finished": ""},
			sq.Lt{"finished": formatTime(cutoff)},
		})
	n, err := execBuilder(ctx, s.db, q)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge finished: %w", err)
	}
	return n, nil
}
