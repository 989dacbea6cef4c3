package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/reaper/internal/config"
	"github.com/flemzord/reaper/internal/core"
	"github.com/flemzord/reaper/internal/cron"
	"github.com/flemzord/reaper/internal/expire"
	"github.com/flemzord/reaper/internal/gateway"
	"github.com/flemzord/reaper/internal/hook"
	"github.com/flemzord/reaper/internal/metrics"
	"github.com/flemzord/reaper/internal/queue"
	"github.com/flemzord/reaper/modules/store/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// StoreModuleID is the module the runtime is wired on.
const StoreModuleID = config.StoreModule

// Runtime holds the components built between LoadModules and Start.
type Runtime struct {
	Store     *sqlite.Module
	Queue     *queue.Metered
	Hooks     *hook.Registry
	Expirer   *expire.Expirer
	Trigger   *expire.Trigger
	Worker    *queue.Worker
	Scheduler *cron.Scheduler
	Registry  *prometheus.Registry

	auditFile *os.File
}

// Wire builds the expirer, queue worker and scheduler on top of the loaded
// store module and registers them as services. It must run after
// LoadModules and before Start so the gateway can resolve them.
func Wire(application *core.App, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	store, err := storeModule(application)
	if err != nil {
		return nil, err
	}
	rt, err := build(store, store.Queue(), cfg, logger)
	if err != nil {
		return nil, err
	}
	httpMetrics := metrics.NewHTTPMetricsWithRegistry(rt.Registry)

	schedLogger := logger.With("component", "cron")
	rt.Scheduler = cron.NewScheduler(schedLogger)
	jobs := []cron.Job{
		&cron.ExpireTriggerJob{
			Queue:        rt.Queue,
			Handler:      expire.HandlerName,
			Priority:     cfg.Expire.Priority,
			Logger:       schedLogger,
			ScheduleExpr: cfg.Expire.Schedule,
		},
		&cron.QueueCleanupJob{
			Store:        rt.Queue,
			MaxAge:       cfg.Queue.CleanupAge,
			Logger:       schedLogger,
			ScheduleExpr: cfg.Queue.CleanupSchedule,
		},
	}
	for _, j := range jobs {
		if err := rt.Scheduler.RegisterJob(j); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("app: registering cron job %s: %w", j.Name(), err)
		}
	}

	appCtx := application.Context()
	appCtx.RegisterService(gateway.ServiceQueue, rt.Queue)
	appCtx.RegisterService(gateway.ServiceTrigger, rt.Trigger)
	appCtx.RegisterService(gateway.ServiceScheduler, rt.Scheduler)
	appCtx.RegisterService(gateway.ServiceGatherer, prometheus.Gatherer(rt.Registry))
	appCtx.RegisterService(gateway.ServiceHTTPMetrics, httpMetrics)
	appCtx.RegisterService("expire.hooks", rt.Hooks)

	return rt, nil
}

func storeModule(application *core.App) (*sqlite.Module, error) {
	mod, ok := application.Module(StoreModuleID)
	if !ok {
		return nil, fmt.Errorf("app: %s module is not loaded", StoreModuleID)
	}
	store, ok := mod.(*sqlite.Module)
	if !ok {
		return nil, fmt.Errorf("app: %s has unexpected type %T", StoreModuleID, mod)
	}
	return store, nil
}

// build creates the expirer and its worker over q. The scheduler and the
// service registrations are left to the caller.
func build(store *sqlite.Module, q queue.Store, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{
		Store:    store,
		Hooks:    hook.NewRegistry(),
		Registry: prometheus.NewRegistry(),
	}
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	expireMetrics := metrics.NewExpireMetricsWithRegistry(rt.Registry)
	queueMetrics := metrics.NewQueueMetricsWithRegistry(rt.Registry)

	if cfg.Expire.AuditLog != "" {
		if err := rt.openAudit(cfg.Expire.AuditLog); err != nil {
			return nil, err
		}
	}

	rt.Queue = queue.NewMetered(q, queueMetrics)
	rt.Trigger = &expire.Trigger{Queue: rt.Queue, Priority: cfg.Expire.Priority}

	exp, err := expire.New(expire.Options{
		Store:   store.Content(),
		Users:   store.Content(),
		Content: store.Content(),
		Hooks:   rt.Hooks,
		Queue:   rt.Queue,
		Metrics: expireMetrics,
		Logger:  logger.With("component", "expire"),
		Config:  expire.Config{OptimizeItems: cfg.Expire.OptimizeItems},
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Expirer = exp

	rt.Worker = queue.NewWorker(rt.Queue, queue.WorkerConfig{
		PollInterval: cfg.Queue.PollInterval,
		Metrics:      queueMetrics,
		Logger:       logger.With("component", "worker"),
	})
	rt.Worker.Handle(expire.HandlerName, exp)

	return rt, nil
}

func (rt *Runtime) openAudit(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("app: creating audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("app: opening audit log: %w", err)
	}
	if err := rt.Hooks.Register(hook.Expire, hook.NewAuditHook(f)); err != nil {
		_ = f.Close()
		return fmt.Errorf("app: registering audit hook: %w", err)
	}
	rt.auditFile = f
	return nil
}

// ApplyConfig pushes the reloadable part of cfg into the running expirer.
// Schedule changes need a restart and are only reported.
func (rt *Runtime) ApplyConfig(cfg *config.Config, logger *slog.Logger) {
	rt.Expirer.SetConfig(expire.Config{OptimizeItems: cfg.Expire.OptimizeItems})
	if rt.Scheduler == nil {
		return
	}
	for _, st := range rt.Scheduler.Status() {
		want := ""
		switch st.Name {
		case "expire":
			want = cfg.Expire.Schedule
		case "queue_cleanup":
			want = cfg.Queue.CleanupSchedule
		}
		if want != "" && want != st.Schedule {
			logger.Warn("app: schedule change requires a restart", "job", st.Name, "current", st.Schedule, "configured", want)
		}
	}
}

// Modules returns the lifecycle wrappers for the worker and the scheduler.
func (rt *Runtime) Modules() []core.Module {
	return []core.Module{
		&workerModule{worker: rt.Worker},
		&schedulerModule{Scheduler: rt.Scheduler},
	}
}

// Close releases resources owned by the runtime. The store is closed by
// its module.
func (rt *Runtime) Close() error {
	if rt.auditFile == nil {
		return nil
	}
	err := rt.auditFile.Close()
	rt.auditFile = nil
	return err
}

// workerModule runs the queue worker inside the app lifecycle.
type workerModule struct {
	worker *queue.Worker
	cancel context.CancelFunc
}

var (
	_ core.Starter = (*workerModule)(nil)
	_ core.Stopper = (*workerModule)(nil)
)

func (m *workerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "queue.worker",
		New: func() core.Module { return &workerModule{} },
	}
}

func (m *workerModule) Start() error {
	if m.worker == nil {
		return errors.New("app: worker not wired")
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.worker.Start(ctx)
	return nil
}

// Stop waits for the in-flight entry until ctx expires, then cancels it.
func (m *workerModule) Stop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		m.worker.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.cancel()
		<-done
	}
	m.cancel()
	return nil
}

// schedulerModule runs the cron scheduler inside the app lifecycle.
type schedulerModule struct {
	*cron.Scheduler
}

var (
	_ core.Starter = (*schedulerModule)(nil)
	_ core.Stopper = (*schedulerModule)(nil)
)

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "cron.scheduler",
		New: func() core.Module { return &schedulerModule{} },
	}
}
