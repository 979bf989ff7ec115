// Package config resolves cron-sentry settings from flags, environment,
// config files, and the legacy single-line DSN files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultStringMaxLength bounds the stdout/stderr tails kept for a run.
// 4096 is more than Sentry will accept by default; SENTRY_MAX_EXTRA_VARIABLE_SIZE
// on the server also needs to be raised to allow longer strings.
const DefaultStringMaxLength = 4096

// EnvDSN is the environment variable consulted when --dsn is not given.
const EnvDSN = "SENTRY_DSN"

// Options are the resolved settings for a wrapped run.
type Options struct {
	DSN             string
	StringMaxLength int
	Quiet           bool
	Timeout         time.Duration
}

// Flags carries command-line values together with whether each was
// explicitly set, so unset flags do not shadow config file values.
type Flags struct {
	DSN        string
	MaxLen     int
	MaxLenSet  bool
	Quiet      bool
	QuietSet   bool
	Timeout    time.Duration
	TimeoutSet bool
}

// Resolve merges settings with the precedence: flag, then SENTRY_DSN env,
// then the YAML config file, then (for the DSN only) the legacy one-line
// files ~/.cron-sentry and /etc/cron-sentry.conf.
func Resolve(f Flags) (Options, error) {
	opts := Options{StringMaxLength: DefaultStringMaxLength}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if d := os.Getenv(EnvHome); d != "" {
		v.AddConfigPath(d)
	}
	if cfgDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(cfgDir, "cron-sentry"))
	}
	if err := v.ReadInConfig(); err == nil {
		opts.DSN = v.GetString("dsn")
		if v.IsSet("string-max-length") {
			opts.StringMaxLength = v.GetInt("string-max-length")
		}
		opts.Quiet = v.GetBool("quiet")
		if v.IsSet("timeout") {
			opts.Timeout = v.GetDuration("timeout")
		}
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return opts, fmt.Errorf("read config: %w", err)
		}
	}

	if dsn := os.Getenv(EnvDSN); dsn != "" {
		opts.DSN = dsn
	}
	if f.DSN != "" {
		opts.DSN = f.DSN
	}
	if f.MaxLenSet {
		opts.StringMaxLength = f.MaxLen
	}
	if f.QuietSet {
		opts.Quiet = f.Quiet
	}
	if f.TimeoutSet {
		opts.Timeout = f.Timeout
	}

	if opts.DSN == "" {
		opts.DSN = legacyDSN()
	}
	if opts.StringMaxLength <= 0 {
		opts.StringMaxLength = DefaultStringMaxLength
	}
	return opts, nil
}

// legacyDSN reads the DSN from the files the original tool supported. Each
// file is expected to contain a bare DSN endpoint on a single line.
func legacyDSN() string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".cron-sentry"))
	}
	paths = append(paths, "/etc/cron-sentry.conf")
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if dsn := strings.TrimSpace(string(b)); dsn != "" {
			return dsn
		}
	}
	return ""
}
