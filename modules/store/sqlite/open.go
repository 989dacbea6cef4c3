package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Open opens the SQLite database described by cfg, applies pragmas and
// migrates the schema. cfg.Path must be set. The caller closes the
// returned handle.
//
// The pool is limited to one connection: SQLite serialises writes and the
// pragmas are per connection.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	raw, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	raw.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := raw.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := raw.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, raw); err != nil {
		_ = raw.Close()
		return nil, err
	}

	// sqlx only uses the driver name to pick a bindvar style.
	return sqlx.NewDb(raw, "sqlite3"), nil
}
