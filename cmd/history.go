package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralish/cron-sentry/internal/db"
	"github.com/ralish/cron-sentry/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent wrapped runs",
	Long:  "Show recent wrapped runs from the local run log (id, time, exit status, duration, command)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		failedOnly, _ := cmd.Flags().GetBool("failed")

		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		defer func() { _ = dbConn.Close() }()

		runs, err := history.NewRepository(dbConn).ListRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}
		for _, r := range runs {
			if failedOnly && r.ExitStatus == 0 {
				continue
			}
			fmt.Printf("%d\t%s\texit=%d\t%dms\t%s\n", r.ID, r.StartedAt, r.ExitStatus, r.DurationMS, r.Command)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show (0 for all)")
	historyCmd.Flags().Bool("failed", false, "Only show failed runs")
	rootCmd.AddCommand(historyCmd)
}
