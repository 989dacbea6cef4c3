// Package expire implements the content expiration sweep. A default sweep
// fans out into queue sub-jobs: one physical delete pass, one per-user
// expiration per user with a retention interval, and one per registered
// expire hook. Each sub-job is dispatched back into Execute by the queue.
package expire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/flemzord/reaper/internal/hook"
	"github.com/flemzord/reaper/internal/metrics"
	"github.com/flemzord/reaper/internal/queue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/reaper/internal/expire"

// Origin describes the queue entry being executed. Sub-jobs inherit its
// priority and creation time.
type Origin struct {
	Priority  int
	CreatedAt time.Time
}

// Options wires the collaborators of an Expirer. Store, Users, Content and
// Queue are required; Hooks, Metrics and Logger are optional.
type Options struct {
	Store   Store
	Users   Users
	Content ContentExpirer
	Hooks   Hooks
	Queue   queue.Queue
	Metrics *metrics.ExpireMetrics
	Logger  *slog.Logger
	Config  Config

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Expirer executes expire requests.
type Expirer struct {
	store   Store
	users   Users
	content ContentExpirer
	hooks   Hooks
	queue   queue.Queue
	metrics *metrics.ExpireMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
	config  atomic.Pointer[Config]
	now     func() time.Time
}

// New creates an Expirer.
func New(opts Options) (*Expirer, error) {
	if opts.Store == nil || opts.Users == nil || opts.Content == nil || opts.Queue == nil {
		return nil, errors.New("expire: store, users, content and queue are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Expirer{
		store:   opts.Store,
		users:   opts.Users,
		content: opts.Content,
		hooks:   opts.Hooks,
		queue:   opts.Queue,
		metrics: opts.Metrics,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		now:     opts.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	cfg := opts.Config
	e.config.Store(&cfg)
	return e, nil
}

// SetConfig replaces the configuration used by subsequent requests.
func (e *Expirer) SetConfig(cfg Config) {
	e.config.Store(&cfg)
}

// Config returns the current configuration.
func (e *Expirer) Config() Config {
	return *e.config.Load()
}

// Handle implements queue.Handler by decoding the entry arguments.
func (e *Expirer) Handle(ctx context.Context, entry queue.Entry) error {
	origin := Origin{Priority: entry.Priority, CreatedAt: entry.CreatedAt}
	return e.Execute(ctx, origin, ParseRequest(entry.Args))
}

// Compile-time interface check.
var _ queue.Handler = (*Expirer)(nil)

// Execute runs one request.
func (e *Expirer) Execute(ctx context.Context, origin Origin, req Request) (err error) {
	if req == nil {
		return errors.New("expire: nil request")
	}
	ctx, span := e.tracer.Start(ctx, "expire."+req.Kind(),
		trace.WithAttributes(
			attribute.String("expire.kind", req.Kind()),
			attribute.Int("queue.priority", origin.Priority),
		),
	)
	start := e.now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if e.metrics != nil {
			e.metrics.ObserveRequest(req.Kind(), e.now().Sub(start), err)
		}
	}()

	switch r := req.(type) {
	case Delete:
		return e.deletePass(ctx, span)
	case ExpireUser:
		span.SetAttributes(attribute.Int64("expire.uid", r.UserID))
		return e.expireUser(ctx, r.UserID)
	case RunHook:
		span.SetAttributes(attribute.String("expire.hook", r.Name))
		return e.runHook(ctx, origin, r.Name)
	case Sweep:
		return e.sweep(ctx, origin)
	default:
		return fmt.Errorf("expire: unsupported request %T", req)
	}
}

func (e *Expirer) sweep(ctx context.Context, origin Origin) error {
	e.logger.Info("expire: start")

	if err := e.enqueue(ctx, origin, Delete{}); err != nil {
		return err
	}

	users, err := e.users.UsersWithExpiration(ctx)
	if err != nil {
		return fmt.Errorf("expire: listing users with expiration: %w", err)
	}
	for _, u := range users {
		e.logger.Debug("expire: calling expiry for user", "uid", u.UID, "username", u.Username)
		if err := e.enqueue(ctx, origin, ExpireUser{UserID: u.UID}); err != nil {
			return err
		}
	}

	e.logger.Info("expire: calling hooks")
	if e.hooks != nil {
		for _, h := range e.hooks.ByName(hook.Expire) {
			e.logger.Debug("expire: calling expire hook", "hook", h.Name())
			if err := e.enqueue(ctx, origin, RunHook{Name: h.Name()}); err != nil {
				return err
			}
		}
	}

	e.logger.Info("expire: end")
	return nil
}

func (e *Expirer) enqueue(ctx context.Context, origin Origin, req Request) error {
	_, err := e.queue.Enqueue(ctx, queue.Entry{
		Priority:  origin.Priority,
		CreatedAt: origin.CreatedAt,
		DontFork:  true,
		Handler:   HandlerName,
		Args:      Args(req),
	})
	if err != nil {
		return fmt.Errorf("expire: enqueueing %s job: %w", req.Kind(), err)
	}
	if e.metrics != nil {
		e.metrics.RecordSubJob(req.Kind())
	}
	return nil
}

func (e *Expirer) deletePass(ctx context.Context, span trace.Span) error {
	cfg := e.Config()
	e.logger.Debug("expire: delete expired items")

	cutoff := e.now().Add(-RetentionFloor)
	items, err := e.store.ExpiredItems(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire: selecting expired items: %w", err)
	}
	for _, it := range items {
		e.logger.Info("expire: delete expired item", "id", it.ID, "guid", it.GUID)
		if err := e.store.DeleteItem(ctx, it.ID); err != nil {
			return fmt.Errorf("expire: deleting item %d: %w", it.ID, err)
		}
		if err := e.store.DeletePostUser(ctx, it.URIID, it.UID); err != nil {
			return fmt.Errorf("expire: deleting post_user %d/%d: %w", it.URIID, it.UID, err)
		}
		if err := e.store.DeletePostThreadUser(ctx, it.URIID, it.UID); err != nil {
			return fmt.Errorf("expire: deleting post_thread_user %d/%d: %w", it.URIID, it.UID, err)
		}
		if e.metrics != nil {
			e.metrics.RecordItemPurged()
		}
	}
	span.SetAttributes(attribute.Int("expire.items_purged", len(items)))

	e.logger.Info("expire: deleting orphaned post-content")
	n, err := e.store.DeleteOrphanPostContent(ctx)
	if err != nil {
		return fmt.Errorf("expire: deleting orphaned post_content: %w", err)
	}
	e.logger.Info("expire: orphaned post-content deleted", "rows", n)
	if e.metrics != nil {
		e.metrics.RecordOrphans("post_content", n)
	}

	e.logger.Info("expire: deleting orphaned post-thread")
	n, err = e.store.DeleteOrphanPostThread(ctx)
	if err != nil {
		return fmt.Errorf("expire: deleting orphaned post_thread: %w", err)
	}
	e.logger.Info("expire: orphaned post-thread deleted", "rows", n)
	if e.metrics != nil {
		e.metrics.RecordOrphans("post_thread", n)
	}

	if cfg.OptimizeItems {
		e.logger.Info("expire: optimizing storage")
		if err := e.store.Optimize(ctx); err != nil {
			return fmt.Errorf("expire: optimizing storage: %w", err)
		}
	}

	if e.metrics != nil {
		e.metrics.RecordDeletePass(e.now())
	}
	e.logger.Debug("expire: delete expired items done", "items", len(items))
	return nil
}

func (e *Expirer) expireUser(ctx context.Context, uid int64) error {
	u, err := e.users.User(ctx, uid)
	if errors.Is(err, ErrUserNotFound) {
		e.logger.Debug("expire: user not found, skipping", "uid", uid)
		return nil
	}
	if err != nil {
		return fmt.Errorf("expire: loading user %d: %w", uid, err)
	}

	e.logger.Debug("expire: expire items for user",
		"uid", u.UID,
		"username", u.Username,
		"interval", u.Expire,
	)
	n, err := e.content.ExpireForUser(ctx, u.UID, u.Expire)
	if err != nil {
		return fmt.Errorf("expire: expiring items for user %d: %w", u.UID, err)
	}
	if e.metrics != nil {
		e.metrics.RecordUserExpired(n)
	}
	e.logger.Debug("expire: expire items for user done", "uid", u.UID, "username", u.Username, "items", n)
	return nil
}

func (e *Expirer) runHook(ctx context.Context, origin Origin, name string) error {
	if e.hooks == nil {
		return nil
	}
	h, ok := e.hooks.Lookup(hook.Expire, name)
	if !ok {
		e.logger.Debug("expire: hook not registered, skipping", "hook", name)
		return nil
	}

	e.logger.Debug("expire: calling expire hook", "hook", name)
	err := h.Execute(ctx, &hook.Context{
		Event: hook.Expire,
		Name:  name,
		Data: map[string]any{
			"priority": origin.Priority,
			"created":  origin.CreatedAt,
		},
		Logger: e.logger.With("hook", name),
	})
	if e.metrics != nil {
		e.metrics.RecordHook(name, err)
	}
	if err != nil {
		return fmt.Errorf("expire: hook %s: %w", name, err)
	}
	return nil
}
