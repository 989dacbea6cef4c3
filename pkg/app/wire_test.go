package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/flemzord/reaper/internal/config"
	"github.com/flemzord/reaper/internal/core"
	"github.com/flemzord/reaper/internal/expire"
	"github.com/flemzord/reaper/internal/gateway"
	"github.com/prometheus/client_golang/prometheus"
)

func newWiredApp(t *testing.T, cfg *config.Config) (*core.App, *Runtime) {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, dir)

	application := core.NewApp(appCtx)
	if err := application.LoadModules([]string{StoreModuleID}); err != nil {
		t.Fatalf("LoadModules: %v", err)
	}
	if err := application.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(application.Stop)

	rt, err := Wire(application, cfg, logger)
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return application, rt
}

func defaultConfig() *config.Config {
	cfg := &config.Config{Version: "1"}
	cfg.ApplyDefaults()
	return cfg
}

func TestWire_RegistersServices(t *testing.T) {
	t.Parallel()

	application, rt := newWiredApp(t, defaultConfig())
	appCtx := application.Context()

	for _, name := range []string{
		gateway.ServiceQueue,
		gateway.ServiceTrigger,
		gateway.ServiceScheduler,
		gateway.ServiceGatherer,
		gateway.ServiceHTTPMetrics,
		gateway.ServiceStoreHealth,
	} {
		if _, ok := appCtx.Service(name); !ok {
			t.Errorf("service %q not registered", name)
		}
	}

	g, ok := core.ServiceAs[prometheus.Gatherer](appCtx, gateway.ServiceGatherer)
	if !ok {
		t.Fatal("gatherer has the wrong type")
	}
	if _, err := g.Gather(); err != nil {
		t.Errorf("Gather: %v", err)
	}

	status := rt.Scheduler.Status()
	if len(status) != 2 || status[0].Name != "expire" || status[1].Name != "queue_cleanup" {
		t.Errorf("scheduler jobs = %+v", status)
	}
	if got := rt.Worker.Handlers(); len(got) != 1 || got[0] != "Expire" {
		t.Errorf("worker handlers = %v", got)
	}
}

func TestWire_TriggerReachesWorker(t *testing.T) {
	t.Parallel()

	_, rt := newWiredApp(t, defaultConfig())
	ctx := context.Background()

	if _, err := rt.Trigger.Enqueue(ctx, nil); err == nil {
		t.Fatal("Enqueue(nil): want error")
	}
	if _, err := rt.Trigger.Enqueue(ctx, expire.Sweep{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	n, err := rt.Worker.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	// A sweep with no users and no hooks only fans out the delete pass.
	if n != 2 {
		t.Errorf("Drain processed %d, want 2", n)
	}
}

func TestRuntime_ApplyConfig(t *testing.T) {
	t.Parallel()

	_, rt := newWiredApp(t, defaultConfig())

	next := defaultConfig()
	next.Expire.OptimizeItems = true
	rt.ApplyConfig(next, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if !rt.Expirer.Config().OptimizeItems {
		t.Error("OptimizeItems not applied")
	}
}

func TestWire_AuditLogRegistersHook(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Expire.AuditLog = filepath.Join(t.TempDir(), "audit.jsonl")
	_, rt := newWiredApp(t, cfg)

	if names := rt.Hooks.Names("expire"); len(names) != 1 || names[0] != "audit" {
		t.Errorf("hooks = %v, want [audit]", names)
	}
}

func TestWire_WithoutStore(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	application := core.NewApp(core.NewAppContext(logger, t.TempDir()))
	if _, err := Wire(application, defaultConfig(), logger); err == nil {
		t.Error("expected error without a store module")
	}
}

func TestRuntime_ModulesLifecycle(t *testing.T) {
	t.Parallel()

	_, rt := newWiredApp(t, defaultConfig())
	mods := rt.Modules()
	if len(mods) != 2 {
		t.Fatalf("Modules = %d, want 2", len(mods))
	}
	for _, mod := range mods {
		if err := mod.(core.Starter).Start(); err != nil {
			t.Fatalf("%s Start: %v", mod.ModuleInfo().ID, err)
		}
	}
	for i := len(mods) - 1; i >= 0; i-- {
		if err := mods[i].(core.Stopper).Stop(context.Background()); err != nil {
			t.Errorf("%s Stop: %v", mods[i].ModuleInfo().ID, err)
		}
	}
}

func TestLoadRuntime_WireFailureReleasesStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := defaultConfig()
	cfg.Expire.AuditLog = filepath.Join(blocker, "audit.jsonl")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	application := core.NewApp(core.NewAppContext(logger, dir))

	if _, err := loadRuntime(application, config.Resolve(cfg), cfg, logger); err == nil {
		t.Fatal("expected audit log error")
	}
	if _, ok := application.Module(StoreModuleID); ok {
		t.Error("store module still loaded after failed wiring")
	}
	health, ok := core.ServiceAs[gateway.Pinger](application.Context(), gateway.ServiceStoreHealth)
	if !ok {
		t.Fatal("store health service was never registered")
	}
	if err := health.Ping(context.Background()); err == nil {
		t.Error("store database still open after failed wiring")
	}
}
