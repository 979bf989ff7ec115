// Package report builds Sentry events for failed runs and delivers them.
package report

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ralish/cron-sentry/internal/logging"
	"github.com/ralish/cron-sentry/internal/version"
)

// ExtraEnvPrefix marks environment variables whose values are attached to
// the event as extras, keyed by the suffix.
const ExtraEnvPrefix = "CRON_SENTRY_EXTRA_"

// DefaultFlushTimeout bounds how long a wrapped run waits on event delivery.
const DefaultFlushTimeout = 10 * time.Second

// Payload is the spool-friendly form of a failure event. It holds everything
// needed to rebuild the Sentry event later. RunID ties the event back to its
// row in the local run log so a delayed delivery can mark the run reported.
type Payload struct {
	Message    string            `json:"message"`
	Logger     string            `json:"logger"`
	ServerName string            `json:"server_name,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	ElapsedMS  int64             `json:"elapsed_ms"`
	RunID      int64             `json:"run_id,omitempty"`
	Extra      map[string]string `json:"extra"`
}

// Build assembles the payload for a failed command, mirroring what the
// original cron-sentry sent: the shell-quoted command line, exit status,
// bounded output tails, and any CRON_SENTRY_EXTRA_* environment extras.
func Build(cmdline string, exitStatus int, stdoutTail, stderrTail string, elapsed time.Duration, environ []string, maxLen int) Payload {
	extra := ExtrasFromEnviron(environ, maxLen)
	extra["command"] = Truncate(cmdline, maxLen)
	extra["exit_status"] = fmt.Sprintf("%d", exitStatus)
	extra["last_lines_stdout"] = stdoutTail
	extra["last_lines_stderr"] = stderrTail

	hostname, _ := os.Hostname()
	return Payload{
		Message:    fmt.Sprintf("Command %q failed", cmdline),
		Logger:     "cron",
		ServerName: hostname,
		Timestamp:  time.Now().UTC(),
		ElapsedMS:  elapsed.Milliseconds(),
		Extra:      extra,
	}
}

// ExtrasFromEnviron extracts CRON_SENTRY_EXTRA_* variables from environ
// (os.Environ form) into an extras map.
func ExtrasFromEnviron(environ []string, maxLen int) map[string]string {
	out := map[string]string{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, ExtraEnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(k, ExtraEnvPrefix)
		if key == "" {
			continue
		}
		out[key] = Truncate(v, maxLen)
	}
	return out
}

// Truncate bounds s to max bytes, marking cut values with a trailing "...".
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= len("...") {
		return s[:max]
	}
	return s[:max-len("...")] + "..."
}

// Reporter delivers payloads to a Sentry server.
type Reporter struct {
	dsn     string
	timeout time.Duration
	log     logging.Logger
}

// New creates a Reporter for dsn. A zero timeout falls back to
// DefaultFlushTimeout.
func New(dsn string, timeout time.Duration, log logging.Logger) *Reporter {
	if timeout <= 0 {
		timeout = DefaultFlushTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Reporter{dsn: dsn, timeout: timeout, log: log}
}

// Send delivers a single payload synchronously. The returned error means the
// event should be spooled for a later retry; it must never fail the wrapped
// command. Delivery goes through a transport that surfaces network and HTTP
// errors, so a nil return means the server actually accepted the event.
func (r *Reporter) Send(p Payload) error {
	if r.dsn == "" {
		return errors.New("no DSN configured")
	}

	transport := newDeliveryTransport(r.timeout)
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       r.dsn,
		Release:   version.Version,
		Transport: transport,
	})
	if err != nil {
		return fmt.Errorf("init sentry client: %w", err)
	}

	id := client.CaptureEvent(p.toEvent(), nil, sentry.NewScope())
	if id == nil {
		return errors.New("event was dropped by the client")
	}
	if err := transport.Err(); err != nil {
		return fmt.Errorf("deliver event: %w", err)
	}
	r.log.Infow("reported failure to sentry", "event_id", string(*id))
	return nil
}

func (p Payload) toEvent() *sentry.Event {
	event := sentry.NewEvent()
	event.Message = p.Message
	event.Level = sentry.LevelError
	event.Logger = p.Logger
	event.ServerName = p.ServerName
	event.Timestamp = p.Timestamp
	for k, v := range p.Extra {
		event.Extra[k] = v
	}
	event.Extra["time_spent_ms"] = p.ElapsedMS
	return event
}
