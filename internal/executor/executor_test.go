package executor

import (
	"context"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test uses unix shell utilities")
	}
}

func TestRunCapturesStdout(t *testing.T) {
	skipOnWindows(t)
	e := New(4096)

	res, err := e.Run(context.Background(), []string{"sh", "-c", "echo hello; echo oops >&2"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitStatus != 0 {
		t.Fatalf("expected exit 0, got %d", res.ExitStatus)
	}
	if res.StdoutTail != "hello\n" {
		t.Fatalf("unexpected stdout tail: %q", res.StdoutTail)
	}
	if res.StderrTail != "oops\n" {
		t.Fatalf("unexpected stderr tail: %q", res.StderrTail)
	}
	if res.Failed() {
		t.Fatalf("exit 0 should not count as failed")
	}
}

func TestRunPropagatesExitStatus(t *testing.T) {
	skipOnWindows(t)
	e := New(4096)

	res, err := e.Run(context.Background(), []string{"sh", "-c", "exit 3"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitStatus != 3 {
		t.Fatalf("expected exit 3, got %d", res.ExitStatus)
	}
	if !res.Failed() {
		t.Fatalf("non-zero exit should count as failed")
	}
}

func TestRunCommandNotFound(t *testing.T) {
	e := New(4096)

	res, err := e.Run(context.Background(), []string{"definitely-not-a-real-command-2653"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitStatus != ExitNotFound {
		t.Fatalf("expected exit %d, got %d", ExitNotFound, res.ExitStatus)
	}
	if res.StderrTail == "" {
		t.Fatalf("expected the start error in the stderr tail")
	}
}

func TestRunEmptyArgv(t *testing.T) {
	e := New(4096)
	if _, err := e.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty argv")
	}
}

func TestRunTimeout(t *testing.T) {
	skipOnWindows(t)
	e := New(4096)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := e.Run(ctx, []string{"sleep", "5"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected TimedOut, got %+v", res)
	}
	if res.ExitStatus != ExitTimedOut {
		t.Fatalf("expected exit %d for a timed-out command, got %d", ExitTimedOut, res.ExitStatus)
	}
}

func TestRunSignalDeathUsesShellConvention(t *testing.T) {
	skipOnWindows(t)
	e := New(4096)

	// the command terminates itself with SIGTERM (15)
	res, err := e.Run(context.Background(), []string{"sh", "-c", "kill -TERM $$"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitStatus != 128+15 {
		t.Fatalf("expected exit %d, got %d", 128+15, res.ExitStatus)
	}
	if res.TimedOut {
		t.Fatalf("signal death without deadline must not be a timeout")
	}
}

func TestTailTruncation(t *testing.T) {
	skipOnWindows(t)
	e := New(10)

	res, err := e.Run(context.Background(), []string{"sh", "-c", "printf aaaaaaaaaabbbbbbb"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(res.StdoutTail, "...") {
		t.Fatalf("expected truncation marker, got %q", res.StdoutTail)
	}
	if len(res.StdoutTail) != 10 {
		t.Fatalf("expected tail of 10 bytes, got %d (%q)", len(res.StdoutTail), res.StdoutTail)
	}
	if !strings.HasSuffix(res.StdoutTail, "bbbbbbb") {
		t.Fatalf("expected the end of the output to be kept, got %q", res.StdoutTail)
	}
}

func TestTailShortOutputNotTruncated(t *testing.T) {
	skipOnWindows(t)
	e := New(4096)

	res, err := e.Run(context.Background(), []string{"sh", "-c", "printf short"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StdoutTail != "short" {
		t.Fatalf("unexpected tail: %q", res.StdoutTail)
	}
}

func TestTailFromFileTinyLimit(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tail")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString("abcdef"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	got, err := tailFromFile(f, 2)
	if err != nil {
		t.Fatalf("tailFromFile: %v", err)
	}
	if got != "ef" {
		t.Fatalf("expected raw 2-byte tail, got %q", got)
	}
}
