// Package migrations embeds the schema for every table in spec.md §3
// and applies it through rubenv/sql-migrate, the migration runner
// already in the teacher's go.mod.
package migrations

import (
	"database/sql"
	"embed"

	migrate "github.com/rubenv/sql-migrate"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Source returns the migration source sql-migrate applies against the
// connected database.
func Source() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: sqlFiles,
		Root:       "sql",
	}
}

// Up applies every pending migration and returns how many were applied.
func Up(db *sql.DB) (int, error) {
	return migrate.Exec(db, "postgres", Source(), migrate.Up)
}
