package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ralish/cron-sentry/internal/db"
	"github.com/ralish/cron-sentry/internal/history"
)

var describeCmd = &cobra.Command{
	Use:   "describe <id>",
	Short: "Show details for a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id: %s", args[0])
		}

		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		defer func() { _ = dbConn.Close() }()

		run, err := history.NewRepository(dbConn).GetRun(id)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run not found: %d", id)
		}

		fmt.Printf("Run: %d\n", run.ID)
		fmt.Printf("Command: %s\n", run.Command)
		fmt.Printf("Started: %s\n", run.StartedAt)
		fmt.Printf("Duration: %dms\n", run.DurationMS)
		fmt.Printf("Exit status: %d\n", run.ExitStatus)
		fmt.Printf("Reported: %t\n", run.Reported)
		if run.Hostname.Valid {
			fmt.Printf("Host: %s\n", run.Hostname.String)
		}
		if run.Username.Valid {
			fmt.Printf("User: %s\n", run.Username.String)
		}
		if run.StdoutTail.Valid && run.StdoutTail.String != "" {
			fmt.Printf("Stdout tail:\n%s\n", run.StdoutTail.String)
		}
		if run.StderrTail.Valid && run.StderrTail.String != "" {
			fmt.Printf("Stderr tail:\n%s\n", run.StderrTail.String)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
