// Package history provides the local log of wrapped runs.
package history

import "database/sql"

// Run is a single wrapped command invocation.
type Run struct {
	ID         int64
	Command    string
	StartedAt  string
	DurationMS int64
	ExitStatus int
	StdoutTail sql.NullString
	StderrTail sql.NullString
	Reported   bool
	Hostname   sql.NullString
	Username   sql.NullString
}
