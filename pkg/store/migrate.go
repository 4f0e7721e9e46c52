package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harrisonrobin/effitime/pkg/model"
)

// SchemaVersion is the latest schema version supported by the migrator.
const SchemaVersion = 1

// DefaultStatuses seeds the status catalogue of a fresh database.
var DefaultStatuses = []model.Status{
	{Name: "New", Type: model.StatusNew, Color: "#9e9e9e"},
	{Name: "In work", Type: model.StatusInWork, Color: "#2196f3"},
	{Name: "Waiting for details", Type: model.StatusWaitForDetail, Color: "#ff9800"},
	{Name: "Info received", Type: model.StatusInfoReceived, Color: "#00bcd4"},
	{Name: "Paused", Type: model.StatusPaused, Color: "#795548"},
	{Name: "Completed", Type: model.StatusCompleted, Color: "#4caf50"},
	{Name: "Cancelled", Type: model.StatusCancelled, Color: "#f44336"},
	{Name: "Deferred", Type: model.StatusDeferred, Color: "#9c27b0"},
}

var schema = []struct {
	name string
	ddl  string
}{
	{"statuses table", `
		CREATE TABLE IF NOT EXISTS statuses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			color TEXT NOT NULL
		);`},
	{"tasks table", `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			category TEXT NOT NULL DEFAULT '',
			status_id INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			started_at TEXT NULL,
			finished_at TEXT NULL,
			deadline TEXT NULL,
			estimate TEXT NOT NULL DEFAULT '',
			scheduled_start TEXT NULL,
			scheduled_end TEXT NULL,
			FOREIGN KEY(status_id) REFERENCES statuses(id)
		);`},
	{"history table", `
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			field TEXT NOT NULL,
			old_value TEXT NOT NULL,
			new_value TEXT NOT NULL,
			created_at TEXT NOT NULL,
			actor_id TEXT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id)
		);`},
	{"sleep_settings table", `
		CREATE TABLE IF NOT EXISTS sleep_settings (
			user_id TEXT PRIMARY KEY,
			wake_up_time TEXT NOT NULL,
			bed_time TEXT NOT NULL
		);`},
	{"idx_tasks_user_schedule", `CREATE INDEX IF NOT EXISTS idx_tasks_user_schedule ON tasks(user_id, scheduled_start, scheduled_end);`},
	{"idx_history_task_at", `CREATE INDEX IF NOT EXISTS idx_history_task_at ON history(task_id, created_at);`},
}

// Migrate ensures the SQLite schema exists, is upgraded to SchemaVersion
// and carries the default statuses.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, step := range schema {
		if _, err := tx.ExecContext(ctx, step.ddl); err != nil {
			return fmt.Errorf("migrate: create %s: %w", step.name, err)
		}
	}
	for _, st := range DefaultStatuses {
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO statuses (name, type, color) VALUES (?, ?, ?);`,
			st.Name, string(st.Type), st.Color)
		if err != nil {
			return fmt.Errorf("migrate: seed status %q: %w", st.Name, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}
