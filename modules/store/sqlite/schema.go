package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user (
		uid      INTEGER PRIMARY KEY,
		username TEXT    NOT NULL DEFAULT '',
		expire   INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS item (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		guid     TEXT    NOT NULL DEFAULT '',
		uri_id   INTEGER NOT NULL,
		uid      INTEGER NOT NULL DEFAULT 0,
		deleted  INTEGER NOT NULL DEFAULT 0,
		starred  INTEGER NOT NULL DEFAULT 0,
		received TEXT    NOT NULL,
		changed  TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_item_deleted_changed ON item(deleted, changed)`,

	`CREATE INDEX IF NOT EXISTS idx_item_uri_id ON item(uri_id)`,

	`CREATE INDEX IF NOT EXISTS idx_item_uid_received ON item(uid, received)`,

	`CREATE TABLE IF NOT EXISTS post_user (
		uri_id INTEGER NOT NULL,
		uid    INTEGER NOT NULL,
		PRIMARY KEY (uri_id, uid)
	)`,

	`CREATE TABLE IF NOT EXISTS post_thread_user (
		uri_id INTEGER NOT NULL,
		uid    INTEGER NOT NULL,
		PRIMARY KEY (uri_id, uid)
	)`,

	`CREATE TABLE IF NOT EXISTS post_content (
		uri_id INTEGER PRIMARY KEY,
		body   TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS post_thread (
		uri_id    INTEGER PRIMARY KEY,
		commented TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS workerqueue (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		id        TEXT    NOT NULL UNIQUE,
		priority  INTEGER NOT NULL DEFAULT 0,
		dont_fork INTEGER NOT NULL DEFAULT 0,
		handler   TEXT    NOT NULL,
		args      TEXT    NOT NULL DEFAULT '[]',
		created   TEXT    NOT NULL,
		enqueued  TEXT    NOT NULL,
		status    TEXT    NOT NULL,
		error     TEXT    NOT NULL DEFAULT '',
		finished  TEXT    NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_workerqueue_status ON workerqueue(status, seq)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(ctx context.Context, db *sql.DB) error {
	// Ensure schema_version table exists first.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
