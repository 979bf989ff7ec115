package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralish/cron-sentry/internal/config"
	"github.com/ralish/cron-sentry/internal/logging"
	"github.com/ralish/cron-sentry/internal/report"
	"github.com/ralish/cron-sentry/internal/spool"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Resend spooled events that previously failed to deliver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dsnFlag, _ := cmd.Flags().GetString("dsn")
		verbose, _ := cmd.Flags().GetBool("verbose")

		opts, err := config.Resolve(config.Flags{DSN: dsnFlag})
		if err != nil {
			return err
		}
		if opts.DSN == "" {
			return fmt.Errorf("no DSN configured; set --dsn or SENTRY_DSN")
		}

		dir, err := config.SpoolDir()
		if err != nil {
			return err
		}
		log := logging.New(verbose)
		s, err := spool.Open(dir, log)
		if err != nil {
			return err
		}

		r := report.New(opts.DSN, report.DefaultFlushTimeout, log)
		sent, kept, err := s.Flush(sendAndMark(r, log), 0)
		if err != nil {
			return err
		}
		fmt.Printf("flushed %d event(s), %d kept\n", sent, kept)
		return nil
	},
}

func init() {
	flushCmd.Flags().String("dsn", "", "Sentry server address (defaults to $SENTRY_DSN)")
	flushCmd.Flags().Bool("verbose", false, "verbose diagnostics on stderr")
	rootCmd.AddCommand(flushCmd)
}
