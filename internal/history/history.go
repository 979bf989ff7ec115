package history

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Repository provides CRUD operations for the run log.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository using db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const runColumns = "id, command, started_at, duration_ms, exit_status, stdout_tail, stderr_tail, reported, hostname, username"

// InsertRun inserts a run row and returns its ID. When StartedAt is empty
// the database clock is used.
func (r *Repository) InsertRun(run *Run) (int64, error) {
	if strings.TrimSpace(run.Command) == "" {
		return 0, fmt.Errorf("invalid run: command cannot be empty")
	}
	startedAt := run.StartedAt
	if startedAt == "" {
		startedAt = "now"
	}
	res, err := r.db.Exec(`INSERT INTO runs (command, started_at, duration_ms, exit_status, stdout_tail, stderr_tail, reported, hostname, username)
			VALUES (?, datetime(?), ?, ?, ?, ?, ?, ?, ?)`,
		run.Command, startedAt, run.DurationMS, run.ExitStatus,
		run.StdoutTail, run.StderrTail, boolToInt(run.Reported), run.Hostname, run.Username)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns everything.
func (r *Repository) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query("SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun returns the run with the given id, or nil when it does not exist.
func (r *Repository) GetRun(id int64) (*Run, error) {
	row := r.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return &run, nil
}

// MarkReported flags a run as successfully delivered to Sentry.
func (r *Repository) MarkReported(id int64) error {
	if _, err := r.db.Exec("UPDATE runs SET reported = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark reported: %w", err)
	}
	return nil
}

// PruneOlderThan deletes runs started more than days ago and returns the
// number of rows removed.
func (r *Repository) PruneOlderThan(days int) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("invalid days: %d", days)
	}
	res, err := r.db.Exec("DELETE FROM runs WHERE started_at < datetime('now', ?)", fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

// PruneKeep deletes all but the newest n runs and returns the number of
// rows removed.
func (r *Repository) PruneKeep(n int) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("invalid keep count: %d", n)
	}
	res, err := r.db.Exec("DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)", n)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var reported int
	err := row.Scan(&run.ID, &run.Command, &run.StartedAt, &run.DurationMS, &run.ExitStatus,
		&run.StdoutTail, &run.StderrTail, &reported, &run.Hostname, &run.Username)
	if err != nil {
		return run, err
	}
	run.Reported = reported != 0
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
