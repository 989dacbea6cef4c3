package reload

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/flemzord/reaper/internal/config"
	"github.com/flemzord/reaper/internal/core"
)

// Handler reloads application configuration and notifies modules.
type Handler struct {
	app    *core.App
	logger *slog.Logger

	mu        sync.Mutex
	listeners []func(*config.Config)
}

// NewHandler creates a reload handler.
func NewHandler(app *core.App, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		app:    app,
		logger: logger,
	}
}

// OnReload registers fn to receive every successfully reloaded config,
// after modules have been reloaded. Listeners run in registration order.
func (h *Handler) OnReload(fn func(*config.Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// HandleReload loads a fresh config from disk, validates it, and calls Reload
// on all modules that implement core.Reloader.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	cfg, err := config.Open(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return h.handleReload(ctx, cfg)
}

// HandleReloadFromConfig reloads modules from a pre-loaded, already-validated
// config. The caller is responsible for calling config.Validate before this
// method; it will not re-validate.
func (h *Handler) HandleReloadFromConfig(ctx context.Context, cfg *config.Config) error {
	return h.handleReload(ctx, cfg)
}

func (h *Handler) handleReload(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	// Reuse the running context so reloaded modules still see the
	// services registered at startup.
	appCtx := h.app.Context().WithModuleConfigs(cfg.Modules)

	if err := h.app.ReloadModules(appCtx); err != nil {
		return fmt.Errorf("reloading modules: %w", err)
	}

	h.mu.Lock()
	listeners := slices.Clone(h.listeners)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}

	h.logger.Info("configuration reloaded successfully")
	return nil
}
