package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralish/cron-sentry/internal/db"
	"github.com/ralish/cron-sentry/internal/history"
)

// exportedRun is the portable form of a run row.
type exportedRun struct {
	ID         int64  `json:"id"`
	Command    string `json:"command"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms"`
	ExitStatus int    `json:"exit_status"`
	StdoutTail string `json:"stdout_tail,omitempty"`
	StderrTail string `json:"stderr_tail,omitempty"`
	Reported   bool   `json:"reported"`
	Hostname   string `json:"hostname,omitempty"`
	Username   string `json:"username,omitempty"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the run log as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("output")

		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		defer func() { _ = dbConn.Close() }()

		runs, err := history.NewRepository(dbConn).ListRuns(0)
		if err != nil {
			return err
		}
		exported := make([]exportedRun, 0, len(runs))
		for _, r := range runs {
			exported = append(exported, exportedRun{
				ID:         r.ID,
				Command:    r.Command,
				StartedAt:  r.StartedAt,
				DurationMS: r.DurationMS,
				ExitStatus: r.ExitStatus,
				StdoutTail: r.StdoutTail.String,
				StderrTail: r.StderrTail.String,
				Reported:   r.Reported,
				Hostname:   r.Hostname.String,
				Username:   r.Username.String,
			})
		}

		w := os.Stdout
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			w = f
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exported)
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
