package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ralish/cron-sentry/internal/db"
	"github.com/ralish/cron-sentry/internal/history"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Trim the local run log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		keepDays, _ := cmd.Flags().GetInt("keep-days")
		keep, _ := cmd.Flags().GetInt("keep")
		if cmd.Flags().Changed("keep-days") && cmd.Flags().Changed("keep") {
			return fmt.Errorf("--keep-days and --keep are mutually exclusive")
		}

		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		defer func() { _ = dbConn.Close() }()

		r := history.NewRepository(dbConn)
		var removed int64
		if cmd.Flags().Changed("keep") {
			removed, err = r.PruneKeep(keep)
		} else {
			removed, err = r.PruneOlderThan(keepDays)
		}
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d run(s)\n", removed)
		return nil
	},
}

func init() {
	pruneCmd.Flags().Int("keep-days", 30, "Delete runs older than this many days")
	pruneCmd.Flags().Int("keep", 0, "Keep only the newest N runs")
	rootCmd.AddCommand(pruneCmd)
}
