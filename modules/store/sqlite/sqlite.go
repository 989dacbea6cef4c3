// Package sqlite implements the persistent store module: content tables
// read by the expire worker and the workerqueue table drained by the
// queue worker, in one SQLite database. It uses modernc.org/sqlite (pure
// Go, no CGO) through sqlx, with queries built by squirrel.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/reaper/internal/core"
	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
)

// Service names registered on the AppContext during Provision.
const (
	ServiceContent = "store.content"
	ServiceQueue   = "store.queue"
	ServiceHealth  = "store.health"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module owns the database handle and exposes the content and queue
// stores as services.
type Module struct {
	config  Config
	db      *sqlx.DB
	logger  *slog.Logger
	content *ContentStore
	queue   *QueueStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	db, err := Open(context.TODO(), m.config)
	if err != nil {
		return err
	}

	m.db = db
	m.content = NewContentStore(db)
	m.queue = NewQueueStore(db)

	ctx.RegisterService(ServiceContent, m.content)
	ctx.RegisterService(ServiceQueue, m.queue)
	ctx.RegisterService(ServiceHealth, m)

	m.logger.Info("sqlite store module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	return m.Ping(context.TODO())
}

// Ping reports whether the database answers.
func (m *Module) Ping(ctx context.Context) error {
	if m.db == nil {
		return fmt.Errorf("sqlite: not provisioned")
	}
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Start implements core.Starter. The database is opened in Provision;
// Start only enrolls the module so the app closes it on shutdown.
func (m *Module) Start() error {
	return nil
}

// Stop implements core.Stopper. Safe to call more than once.
func (m *Module) Stop(_ context.Context) error {
	if m.logger != nil {
		m.logger.Info("sqlite store module stopping")
	}
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// Content returns the content store.
func (m *Module) Content() *ContentStore {
	return m.content
}

// Queue returns the persistent queue store.
func (m *Module) Queue() *QueueStore {
	return m.queue
}
