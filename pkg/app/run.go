// Package app provides the shared entry point for the reaper binary.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/reaper/internal/config"
	"github.com/flemzord/reaper/internal/core"
	"github.com/flemzord/reaper/internal/expire"
	"github.com/flemzord/reaper/internal/queue"
	"github.com/flemzord/reaper/internal/redact"
	"github.com/flemzord/reaper/internal/reload"
	"github.com/flemzord/reaper/internal/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel overrides log.level from the config when non-empty.
	LogLevel string
}

func (p RunParams) load() (string, *config.Config, error) {
	cfgPath := p.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return "", nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Open(cfgPath, config.WithLogLevel(p.LogLevel))
	if err != nil {
		return "", nil, err
	}
	return cfgPath, cfg, nil
}

func (p RunParams) dataDir() string {
	if p.DataDir != "" {
		return p.DataDir
	}
	return DefaultDataDir()
}

// Run loads configuration, starts all modules, and blocks until a shutdown
// signal is received. SIGHUP and file-change events trigger a live
// configuration reload.
func Run(params RunParams) error {
	cfgPath, cfg, err := params.load()
	if err != nil {
		return err
	}

	redactor := redact.New(configSecrets(cfg)...)
	logger, err := NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Level, redactor)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(context.Background(), telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: params.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	appCtx := core.NewAppContext(logger, params.dataDir())
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	// Register the config path so modules (e.g. the gateway) can discover it.
	appCtx.RegisterService("config.path", cfgPath)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	rt, err := loadRuntime(application, ids, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	handler := reload.NewHandler(application, logger)
	handler.OnReload(func(c *config.Config) {
		redactor.Replace(configSecrets(c)...)
		rt.ApplyConfig(c, logger)
	})
	appCtx.RegisterService("reload.handler", handler)

	if err := application.Start(); err != nil {
		return err
	}
	logger.Info("reaper started",
		"version", params.Version,
		"modules", len(ids),
		"expire_schedule", cfg.Expire.Schedule,
	)

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// --- file watcher ---
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()

	var events <-chan reload.Event
	watcher, err := reload.NewWatcher(reload.WatcherConfig{
		ConfigPath: cfgPath,
		Logger:     logger,
	})
	if err == nil {
		err = watcher.Start(watchCtx)
	}
	if err != nil {
		logger.Warn("config watcher unavailable, reload on SIGHUP only", "error", err)
	} else {
		events = watcher.Events()
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	// --- main event loop ---
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, reloading configuration")
				if err := handler.HandleReload(watchCtx, cfgPath); err != nil {
					logger.Error("reload failed", "error", err)
				}
			default:
				logger.Info("shutdown signal received", "signal", sig.String())
				application.Stop()
				logger.Info("shutdown complete")
				return nil
			}
		case evt := <-events:
			logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			if err := handler.HandleReload(watchCtx, cfgPath); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

// loadRuntime loads ids and wires the runtime between LoadModules and
// Start, so the gateway can resolve the queue, trigger and scheduler
// services when it starts. A wiring failure unloads the modules again.
func loadRuntime(application *core.App, ids []string, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}
	rt, err := Wire(application, cfg, logger)
	if err != nil {
		application.Unload()
		return nil, err
	}
	for _, mod := range rt.Modules() {
		application.AppendModule(mod)
	}
	return rt, nil
}

// SweepParams configures a one-shot expire run.
type SweepParams struct {
	RunParams

	// Request is executed along with every sub-job it enqueues.
	Request expire.Request
}

// SweepResult reports what a one-shot run executed.
type SweepResult struct {
	Processed int
	Entries   []queue.Entry
}

// RunSweep executes one expire request against the configured store and
// drains the sub-jobs it enqueues. Entries go through a private in-memory
// queue so a running daemon's queue is left untouched.
func RunSweep(ctx context.Context, params SweepParams) (SweepResult, error) {
	_, cfg, err := params.load()
	if err != nil {
		return SweepResult{}, err
	}
	logger, err := NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Level, redact.New(configSecrets(cfg)...))
	if err != nil {
		return SweepResult{}, err
	}

	appCtx := core.NewAppContext(logger, params.dataDir())
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	application := core.NewApp(appCtx)
	if err := application.LoadModules([]string{config.StoreModule}); err != nil {
		return SweepResult{}, err
	}
	if err := application.Start(); err != nil {
		return SweepResult{}, err
	}
	defer application.Stop()

	store, err := storeModule(application)
	if err != nil {
		return SweepResult{}, err
	}
	mem := queue.NewMemoryQueue()
	rt, err := build(store, mem, cfg, logger)
	if err != nil {
		return SweepResult{}, err
	}
	defer func() { _ = rt.Close() }()

	req := params.Request
	if req == nil {
		req = expire.Sweep{}
	}
	if _, err := rt.Trigger.Enqueue(ctx, req); err != nil {
		return SweepResult{}, err
	}

	n, err := rt.Worker.Drain(ctx)
	res := SweepResult{Processed: n, Entries: mem.Entries()}
	if err != nil {
		return res, fmt.Errorf("app: sweep: %w", err)
	}
	return res, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/reaper/reaper.yaml → ~/.config/reaper/reaper.yaml → ./reaper.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "reaper", "reaper.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "reaper", "reaper.yaml"))
	}

	candidates = append(candidates, "reaper.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/reaper if set, otherwise ~/.local/share/reaper.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "reaper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "reaper")
}
