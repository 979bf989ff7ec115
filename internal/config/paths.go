package config

import (
	"os"
	"path/filepath"
)

// Environment overrides, mainly used by tests and exotic cron setups.
const (
	EnvHome = "CRON_SENTRY_HOME"
	EnvDB   = "CRON_SENTRY_DB"
)

// DataDir returns the directory used to store cron-sentry data (the run log
// database and the event spool).
func DataDir() (string, error) {
	if d := os.Getenv(EnvHome); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cron-sentry.d"), nil
}

// EnsureDataDir creates the data directory if needed and returns its path.
func EnsureDataDir() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", err
	}
	return d, nil
}

// DBPath returns the full path to the SQLite database file.
func DBPath() (string, error) {
	if p := os.Getenv(EnvDB); p != "" {
		return p, nil
	}
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "cron-sentry.db"), nil
}

// SpoolDir returns the directory holding undelivered events.
func SpoolDir() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "spool"), nil
}
