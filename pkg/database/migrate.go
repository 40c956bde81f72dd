package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migration commands accepted by Migrate.
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
	MigrateRedo   = "redo"
	MigrateReset  = "reset"
)

// gooseRun is swapped in tests.
var gooseRun = goose.Run

func init() {
	goose.SetBaseFS(migrationsFS)
}

// Migrate runs a goose command against the embedded SQL migrations.
func Migrate(db *sql.DB, command string, args ...string) error {
	switch command {
	case MigrateUp, MigrateDown, MigrateStatus, MigrateRedo, MigrateReset, "version", "up-by-one", "up-to", "down-to":
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseRun(command, db, migrationsDir, args...); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}
