package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ralish/cron-sentry/internal/config"
)

// InitDB ensures the data directory exists, opens the SQLite database, and
// creates the schema if it does not exist. When CRON_SENTRY_DB points the
// database elsewhere the caller owns that location's parent directory.
func InitDB() (*sql.DB, error) {
	if _, err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath, err := config.DBPath()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := ApplyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
