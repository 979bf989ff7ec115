// Package executor runs the wrapped command and captures bounded output tails.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// ExitNotFound is returned when the wrapped command cannot be started.
// 127 is the shell convention for "command not found".
const ExitNotFound = 127

// ExitTimedOut is returned when the command was killed on timeout, matching
// the timeout(1) convention.
const ExitTimedOut = 124

// Result describes a finished wrapped command.
type Result struct {
	ExitStatus int
	StdoutTail string
	StderrTail string
	Elapsed    time.Duration
	TimedOut   bool
}

// Failed reports whether the run should be reported to Sentry.
func (r *Result) Failed() bool {
	return r.ExitStatus != 0
}

// Runner executes an argv and returns its result. It allows tests to inject
// fake implementations without running real commands.
type Runner interface {
	Run(ctx context.Context, argv []string) (*Result, error)
}

// Executor is the real Runner. MaxTailLen bounds the captured stdout/stderr
// tails in bytes.
type Executor struct {
	MaxTailLen int
}

// New returns a Runner backed by the real Executor implementation.
func New(maxTailLen int) Runner {
	return &Executor{MaxTailLen: maxTailLen}
}

// Run executes argv with stdout and stderr captured to temporary files.
// Stdin is inherited so interactive use still works. The child's exit code
// is carried in the Result; Run only returns an error for wrapper-side
// failures (temp files, etc.).
func (e *Executor) Run(ctx context.Context, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	stdout, err := os.CreateTemp("", "cron-sentry-stdout-")
	if err != nil {
		return nil, fmt.Errorf("create stdout capture: %w", err)
	}
	defer cleanupTemp(stdout)
	stderr, err := os.CreateTemp("", "cron-sentry-stderr-")
	if err != nil {
		return nil, fmt.Errorf("create stderr capture: %w", err)
	}
	defer cleanupTemp(stderr)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	res := &Result{Elapsed: time.Since(start)}

	switch {
	case runErr == nil:
		res.ExitStatus = 0
	case isExitError(runErr):
		res.ExitStatus = cmd.ProcessState.ExitCode()
		if res.ExitStatus == -1 {
			// killed by a signal; use the 128+signal shell convention
			if code, ok := signalExitStatus(cmd.ProcessState); ok {
				res.ExitStatus = code
			}
		}
	default:
		// start failure: command not found, not executable, bad path
		res.ExitStatus = ExitNotFound
		res.StderrTail = runErr.Error()
		res.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
		return res, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		if !cmd.ProcessState.Exited() {
			res.ExitStatus = ExitTimedOut
		}
	}

	if res.StdoutTail, err = tailFromFile(stdout, e.MaxTailLen); err != nil {
		return nil, fmt.Errorf("read stdout capture: %w", err)
	}
	if res.StderrTail, err = tailFromFile(stderr, e.MaxTailLen); err != nil {
		return nil, fmt.Errorf("read stderr capture: %w", err)
	}
	return res, nil
}

func isExitError(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}

func cleanupTemp(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

// tailFromFile returns up to max bytes from the end of f. When the capture
// is larger than max, the tail is prefixed with "..." to signal truncation.
func tailFromFile(f *os.File, max int) (string, error) {
	if max <= 0 {
		return "", nil
	}
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()

	if size < int64(max) || max <= len("...") {
		keep := size
		if keep > int64(max) {
			keep = int64(max)
		}
		if _, err := f.Seek(-keep, io.SeekEnd); err != nil {
			return "", err
		}
		b, err := io.ReadAll(f)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	if _, err := f.Seek(-int64(max-len("...")), io.SeekEnd); err != nil {
		return "", err
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return "..." + string(b), nil
}
