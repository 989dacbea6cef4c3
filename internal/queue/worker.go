package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/reaper/internal/metrics"
)

// ErrUnknownHandler is recorded on entries whose handler is not registered.
var ErrUnknownHandler = errors.New("queue: unknown handler")

const defaultPollInterval = 2 * time.Second

// Handler runs one entry.
type Handler interface {
	Handle(ctx context.Context, e Entry) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Entry) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, e Entry) error { return f(ctx, e) }

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	// PollInterval is how often the worker checks for pending entries
	// when the queue is idle. Defaults to 2 seconds.
	PollInterval time.Duration

	// Metrics is optional.
	Metrics *metrics.QueueMetrics

	Logger *slog.Logger
}

// Worker claims entries from a Store and runs them one at a time through
// a typed handler table.
type Worker struct {
	store    Store
	cfg      WorkerConfig
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[string]Handler

	stop      chan struct{}
	stopped   chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWorker creates a worker. Handlers must be registered before Start.
func NewWorker(store Store, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]Handler),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Handle registers h under name, replacing any previous registration.
func (w *Worker) Handle(name string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = h
}

// Handlers returns the registered handler names.
func (w *Worker) Handlers() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.handlers))
	for name := range w.handlers {
		names = append(names, name)
	}
	return names
}

// RunOnce claims and runs a single entry. It reports false when the queue
// was empty. Handler failures are recorded on the entry, not returned;
// only store errors are returned.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	e, ok, err := w.store.Claim(ctx)
	if err != nil {
		return false, fmt.Errorf("queue: claiming entry: %w", err)
	}
	if !ok {
		return false, nil
	}

	start := time.Now()
	runErr := w.run(ctx, e)
	elapsed := time.Since(start)

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.RecordProcessed(e.Handler, elapsed, runErr)
	}

	if runErr != nil {
		w.logger.Error("queue: job failed",
			"id", e.ID,
			"handler", e.Handler,
			"args", e.Args,
			"error", runErr,
		)
		if err := w.store.Fail(ctx, e.ID, runErr.Error()); err != nil {
			return true, fmt.Errorf("queue: marking %s failed: %w", e.ID, err)
		}
		return true, nil
	}

	w.logger.Debug("queue: job done",
		"id", e.ID,
		"handler", e.Handler,
		"args", e.Args,
		"duration", elapsed,
	)
	if err := w.store.Complete(ctx, e.ID); err != nil {
		return true, fmt.Errorf("queue: marking %s done: %w", e.ID, err)
	}
	return true, nil
}

// Drain runs entries until the queue is empty, including entries enqueued
// by the handlers themselves. It returns the number of entries processed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ran, err := w.RunOnce(ctx)
		if err != nil {
			return n, err
		}
		if !ran {
			return n, nil
		}
		n++
	}
}

func (w *Worker) run(ctx context.Context, e Entry) (err error) {
	w.mu.RLock()
	h, ok := w.handlers[e.Handler]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandler, e.Handler)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: handler %s panicked: %v", e.Handler, r)
		}
	}()
	return h.Handle(ctx, e)
}

// Start begins polling in a background goroutine. Safe to call multiple
// times; only the first call starts the loop.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.loop(ctx)
	})
}

// Stop stops the polling loop and waits for the in-flight entry to finish.
// Safe to call multiple times and before Start.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("queue: worker started", "poll_interval", w.cfg.PollInterval)
	for {
		w.drainUntilStopped(ctx)
		w.reportPending(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("queue: worker stopped")
			return
		case <-w.stop:
			w.logger.Info("queue: worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// drainUntilStopped is Drain that also checks the stop channel between entries.
func (w *Worker) drainUntilStopped(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		ran, err := w.RunOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("queue: run failed", "error", err)
			}
			return
		}
		if !ran {
			return
		}
	}
}

func (w *Worker) reportPending(ctx context.Context) {
	if w.cfg.Metrics == nil {
		return
	}
	n, err := w.store.Pending(ctx)
	if err != nil {
		return
	}
	w.cfg.Metrics.SetPending(n)
}
