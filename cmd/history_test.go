package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralish/cron-sentry/internal/db"
	"github.com/ralish/cron-sentry/internal/history"
)

func seedRun(t *testing.T, command string, exitStatus int) int64 {
	t.Helper()
	dbConn, err := db.InitDB()
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer func() { _ = dbConn.Close() }()
	id, err := history.NewRepository(dbConn).InsertRun(&history.Run{
		Command:    command,
		ExitStatus: exitStatus,
		DurationMS: 10,
		StderrTail: sql.NullString{String: "tail of stderr", Valid: true},
	})
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	return id
}

func TestHistoryCLIListsRuns(t *testing.T) {
	setupTempHome(t)
	seedRun(t, "sh -c 'daily job'", 0)
	seedRun(t, "sh -c 'broken job'", 2)

	out, _ := captureOutput(func() {
		rootCmd.SetArgs([]string{"history"})
		if code := Execute(); code != 0 {
			t.Errorf("history failed with code %d", code)
		}
	})
	if !strings.Contains(out, "daily job") || !strings.Contains(out, "broken job") {
		t.Fatalf("expected both runs in output, got %q", out)
	}
}

func TestHistoryCLIFailedOnly(t *testing.T) {
	setupTempHome(t)
	seedRun(t, "sh -c 'daily job'", 0)
	seedRun(t, "sh -c 'broken job'", 2)

	out, _ := captureOutput(func() {
		rootCmd.SetArgs([]string{"history", "--failed"})
		if code := Execute(); code != 0 {
			t.Errorf("history failed with code %d", code)
		}
	})
	if strings.Contains(out, "daily job") {
		t.Fatalf("--failed must hide successful runs, got %q", out)
	}
	if !strings.Contains(out, "broken job") {
		t.Fatalf("expected failed run in output, got %q", out)
	}
}

func TestHistoryCLIEmpty(t *testing.T) {
	setupTempHome(t)

	out, _ := captureOutput(func() {
		rootCmd.SetArgs([]string{"history"})
		if code := Execute(); code != 0 {
			t.Errorf("history failed with code %d", code)
		}
	})
	if !strings.Contains(out, "no runs recorded") {
		t.Fatalf("expected empty notice, got %q", out)
	}
}

func TestDescribeCLIShowsRunDetail(t *testing.T) {
	setupTempHome(t)
	id := seedRun(t, "sh -c 'broken job'", 2)

	out, _ := captureOutput(func() {
		rootCmd.SetArgs([]string{"describe", fmt.Sprintf("%d", id)})
		if code := Execute(); code != 0 {
			t.Errorf("describe failed with code %d", code)
		}
	})
	for _, want := range []string{"broken job", "Exit status: 2", "tail of stderr"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %q", want, out)
		}
	}
}

func TestDescribeCLIMissingRun(t *testing.T) {
	setupTempHome(t)

	_, _ = captureOutput(func() {
		rootCmd.SetArgs([]string{"describe", "999"})
		if code := Execute(); code != 1 {
			t.Errorf("expected exit 1 for missing run, got %d", code)
		}
	})
}

func TestPruneCLIKeep(t *testing.T) {
	setupTempHome(t)
	for i := 0; i < 4; i++ {
		seedRun(t, "sh -c job", 0)
	}

	out, _ := captureOutput(func() {
		rootCmd.SetArgs([]string{"prune", "--keep", "1"})
		if code := Execute(); code != 0 {
			t.Errorf("prune failed with code %d", code)
		}
	})
	if !strings.Contains(out, "pruned 3 run(s)") {
		t.Fatalf("unexpected prune output: %q", out)
	}
	if runs := listRuns(t); len(runs) != 1 {
		t.Fatalf("expected 1 run left, got %d", len(runs))
	}
}

func TestPruneCLIRejectsConflictingFlags(t *testing.T) {
	setupTempHome(t)

	_, _ = captureOutput(func() {
		rootCmd.SetArgs([]string{"prune", "--keep", "1", "--keep-days", "7"})
		if code := Execute(); code != 1 {
			t.Errorf("expected exit 1 for conflicting flags, got %d", code)
		}
	})
}

func TestExportCLIWritesJSON(t *testing.T) {
	setupTempHome(t)
	seedRun(t, "sh -c 'export me'", 3)
	dest := filepath.Join(t.TempDir(), "runs.json")

	_, _ = captureOutput(func() {
		rootCmd.SetArgs([]string{"export", "-o", dest})
		if code := Execute(); code != 0 {
			t.Errorf("export failed with code %d", code)
		}
	})

	b, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var runs []map[string]interface{}
	if err := json.Unmarshal(b, &runs); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 exported run, got %d", len(runs))
	}
	if runs[0]["command"] != "sh -c 'export me'" {
		t.Fatalf("unexpected exported command: %v", runs[0]["command"])
	}
	if runs[0]["exit_status"] != float64(3) {
		t.Fatalf("unexpected exported exit status: %v", runs[0]["exit_status"])
	}
}
