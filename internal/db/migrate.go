package db

import (
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

func RunMigrations() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	switch dialect {
	case DialectPostgres:
		if err := goose.SetDialect("postgres"); err != nil {
			return err
		}
		return goose.Up(db, "migrations/postgres")
	default:
		if err := goose.SetDialect("sqlite3"); err != nil {
			return err
		}
		return goose.Up(db, "migrations/sqlite")
	}
}
