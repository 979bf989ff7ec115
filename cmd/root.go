package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ralish/cron-sentry/internal/config"
	"github.com/ralish/cron-sentry/internal/db"
	"github.com/ralish/cron-sentry/internal/executor"
	"github.com/ralish/cron-sentry/internal/history"
	"github.com/ralish/cron-sentry/internal/logging"
	"github.com/ralish/cron-sentry/internal/report"
	"github.com/ralish/cron-sentry/internal/spool"
	"github.com/ralish/cron-sentry/internal/version"
)

// replayLimit bounds the opportunistic spool replay piggybacked on a run, so
// a long backlog cannot delay the cron job's own schedule.
const replayLimit = 5

// exitStatus carries the wrapped command's exit code out to main.
var exitStatus int

var rootCmd = &cobra.Command{
	Use:   "cron-sentry [flags] -- cmd [arg ...]",
	Short: "Wraps commands and reports those that fail to Sentry",
	Long: "cron-sentry runs the given command, captures its output, and reports\n" +
		"non-zero exits to a Sentry server. The server address can also be given\n" +
		"through the SENTRY_DSN environment variable (omitting --dsn).",
	Args:          cobra.ArbitraryArgs,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWrapped,
}

// Execute runs the root command and returns the process exit code: the
// wrapped command's own exit code, or 1 for wrapper-side errors.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cron-sentry: %v\n", err)
		return 1
	}
	return exitStatus
}

func runWrapped(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		_ = cmd.Usage()
		return fmt.Errorf("missing command parameter")
	}

	flags := cmd.Flags()
	dsnFlag, _ := flags.GetString("dsn")
	maxLen, _ := flags.GetInt("string-max-length")
	quiet, _ := flags.GetBool("quiet")
	timeout, _ := flags.GetDuration("timeout")
	noHistory, _ := flags.GetBool("no-history")
	verbose, _ := flags.GetBool("verbose")

	opts, err := config.Resolve(config.Flags{
		DSN:        dsnFlag,
		MaxLen:     maxLen,
		MaxLenSet:  flags.Changed("string-max-length"),
		Quiet:      quiet,
		QuietSet:   flags.Changed("quiet"),
		Timeout:    timeout,
		TimeoutSet: flags.Changed("timeout"),
	})
	if err != nil {
		return err
	}

	log := logging.New(verbose)
	cmdline := shellquote.Join(args...)

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	e := executor.New(opts.StringMaxLength)
	started := time.Now().UTC()
	res, err := e.Run(ctx, args)
	if err != nil {
		return err
	}
	exitStatus = res.ExitStatus

	// Record the run up front so its id can ride along in the event and
	// flip to reported once delivery succeeds, even via a later flush.
	var runID int64
	if !noHistory {
		runID = recordRun(cmdline, started, res, log)
	}

	// Replay older spooled events before reporting the current failure so
	// event order is preserved.
	if opts.DSN != "" {
		replaySpool(opts, log, replayLimit)
	}

	if res.Failed() {
		reportFailure(opts, cmdline, res, runID, log)
	}

	if !opts.Quiet {
		_, _ = os.Stdout.WriteString(res.StdoutTail)
		_, _ = os.Stderr.WriteString(res.StderrTail)
	}
	return nil
}

// reportFailure sends the failure event, spooling it when delivery is not
// possible. The run log entry named by runID is marked reported once the
// event reaches Sentry, here or on a later flush.
func reportFailure(opts config.Options, cmdline string, res *executor.Result, runID int64, log logging.Logger) {
	if opts.DSN == "" {
		return
	}
	payload := report.Build(cmdline, res.ExitStatus, res.StdoutTail, res.StderrTail, res.Elapsed, os.Environ(), opts.StringMaxLength)
	payload.RunID = runID
	if res.TimedOut {
		payload.Extra["timed_out"] = "true"
	}

	r := report.New(opts.DSN, report.DefaultFlushTimeout, log)
	if err := sendAndMark(r, log)(payload); err != nil {
		log.Warnw("could not report failure, spooling event", "error", err)
		dir, dirErr := config.SpoolDir()
		if dirErr != nil {
			log.Errorw("event lost: no spool dir", "error", dirErr)
			return
		}
		s, openErr := spool.Open(dir, log)
		if openErr != nil {
			log.Errorw("event lost: cannot open spool", "error", openErr)
			return
		}
		if putErr := s.Put(payload); putErr != nil {
			log.Errorw("event lost: cannot spool", "error", putErr)
		}
	}
}

// recordRun appends the run to the local log and returns the new row id, or
// zero when recording failed. Failures are warnings only; the wrapped
// command's exit code is already decided.
func recordRun(cmdline string, started time.Time, res *executor.Result, log logging.Logger) int64 {
	dbConn, err := db.InitDB()
	if err != nil {
		log.Warnw("run not recorded", "error", err)
		return 0
	}
	defer func() { _ = dbConn.Close() }()

	run := &history.Run{
		Command:    cmdline,
		StartedAt:  started.Format("2006-01-02 15:04:05"),
		DurationMS: res.Elapsed.Milliseconds(),
		ExitStatus: res.ExitStatus,
		StdoutTail: sql.NullString{String: res.StdoutTail, Valid: res.StdoutTail != ""},
		StderrTail: sql.NullString{String: res.StderrTail, Valid: res.StderrTail != ""},
	}
	if hostname, err := os.Hostname(); err == nil {
		run.Hostname = sql.NullString{String: hostname, Valid: true}
	}
	if u, err := user.Current(); err == nil {
		run.Username = sql.NullString{String: u.Username, Valid: true}
	}

	id, err := history.NewRepository(dbConn).InsertRun(run)
	if err != nil {
		log.Warnw("run not recorded", "error", err)
		return 0
	}
	return id
}

// markReported flips a run log entry to reported, best effort.
func markReported(runID int64, log logging.Logger) {
	dbConn, err := db.InitDB()
	if err != nil {
		log.Warnw("run log not updated", "run_id", runID, "error", err)
		return
	}
	defer func() { _ = dbConn.Close() }()

	if err := history.NewRepository(dbConn).MarkReported(runID); err != nil {
		log.Warnw("run log not updated", "run_id", runID, "error", err)
	}
}

// sendAndMark wraps Reporter.Send so events that carry a run id flip their
// run log entry to reported once delivery succeeds.
func sendAndMark(r *report.Reporter, log logging.Logger) func(report.Payload) error {
	return func(p report.Payload) error {
		if err := r.Send(p); err != nil {
			return err
		}
		if p.RunID > 0 {
			markReported(p.RunID, log)
		}
		return nil
	}
}

// replaySpool retries up to limit spooled events, best effort.
func replaySpool(opts config.Options, log logging.Logger, limit int) {
	dir, err := config.SpoolDir()
	if err != nil {
		return
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		return // nothing spooled yet
	}
	s, err := spool.Open(dir, log)
	if err != nil {
		return
	}
	r := report.New(opts.DSN, report.DefaultFlushTimeout, log)
	sent, kept, err := s.Flush(sendAndMark(r, log), limit)
	if err != nil {
		log.Warnw("spool replay failed", "error", err)
		return
	}
	if sent > 0 {
		log.Infow("replayed spooled events", "sent", sent, "kept", kept)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.SetInterspersed(false)
	flags.String("dsn", "", "Sentry server address (defaults to $SENTRY_DSN)")
	flags.IntP("string-max-length", "M", config.DefaultStringMaxLength,
		"The maximum characters of a string that should be sent to Sentry")
	flags.BoolP("quiet", "q", false, "suppress all command output")
	flags.Duration("timeout", 0, "kill the command after this duration (0 disables)")
	flags.Bool("no-history", false, "do not record the run in the local run log")
	flags.Bool("verbose", false, "verbose diagnostics on stderr")

	// accepted for compatibility with the historical flag spelling
	flags.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "max-message-length" {
			name = "string-max-length"
		}
		return pflag.NormalizedName(name)
	})
}
