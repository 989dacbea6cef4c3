// Package reload provides configuration hot-reload via file notifications
// and signal handling.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// ConfigPath is the path to the configuration file to watch.
	ConfigPath string

	// Debounce coalesces bursts of writes into one event.
	// Defaults to 200ms if zero.
	Debounce time.Duration

	Logger *slog.Logger
}

func (c WatcherConfig) debounceOrDefault() time.Duration {
	if c.Debounce > 0 {
		return c.Debounce
	}
	return defaultDebounce
}

// EventType describes the type of file change event.
type EventType string

const (
	// EventModified indicates the config file was written or replaced.
	EventModified EventType = "modified"
)

// Event represents a file change notification.
type Event struct {
	Type       EventType
	ConfigPath string
}

// Watcher reports modifications of a configuration file. It watches the
// parent directory so that editors replacing the file by rename are seen.
type Watcher struct {
	cfg     WatcherConfig
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
	events  chan Event
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a new file watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reload: create fsnotify watcher: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		fsw:     fsw,
		events:  make(chan Event, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Start begins watching the config file's directory. Safe to call multiple
// times; only the first call starts the goroutine. It returns an error when
// the directory cannot be watched.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.startOnce.Do(func() {
		dir := filepath.Dir(w.cfg.ConfigPath)
		if err = w.fsw.Add(dir); err != nil {
			err = fmt.Errorf("reload: watch %s: %w", dir, err)
			return
		}
		w.started.Store(true)
		go w.loop(ctx)
	})
	return err
}

// Events returns the channel of file change events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher. Safe to call multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		if !w.started.Load() {
			_ = w.fsw.Close()
		}
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stopped)
	defer func() { _ = w.fsw.Close() }()

	target := filepath.Clean(w.cfg.ConfigPath)
	debounce := time.NewTimer(w.cfg.debounceOrDefault())
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("reload: config file event", "path", ev.Name, "op", ev.Op.String())
			debounce.Reset(w.cfg.debounceOrDefault())
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("reload: watcher error", "error", err)
		case <-debounce.C:
			select {
			case w.events <- Event{
				Type:       EventModified,
				ConfigPath: w.cfg.ConfigPath,
			}:
			default:
				// Drop event if channel is full (debounce).
			}
		}
	}
}
