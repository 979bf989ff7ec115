// Package spool persists events that could not be delivered so a later run
// or an explicit flush can retry them.
package spool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ralish/cron-sentry/internal/logging"
	"github.com/ralish/cron-sentry/internal/report"
)

// Entry is a spooled event together with its file name.
type Entry struct {
	Name    string
	Payload report.Payload
}

// Spool stores one JSON file per undelivered event. File names sort
// oldest-first so replay preserves event order.
type Spool struct {
	dir string
	log logging.Logger
}

// Open ensures dir exists and returns a Spool over it.
func Open(dir string, log logging.Logger) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Spool{dir: dir, log: log}, nil
}

// seq keeps names unique when the clock is too coarse to separate writes.
var seq atomic.Uint64

// Put writes a payload to the spool.
func (s *Spool) Put(p report.Payload) error {
	name := fmt.Sprintf("%d-%d-%d.json", time.Now().UnixNano(), os.Getpid(), seq.Add(1))
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), b, 0o600); err != nil {
		return fmt.Errorf("write spool file: %w", err)
	}
	return nil
}

// Entries returns the spooled events, oldest first. Files that cannot be
// decoded are renamed with a .corrupt suffix and skipped, never deleted.
func (s *Spool) Entries() ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read spool dir: %w", err)
	}
	var names []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)

	var out []Entry
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spool file: %w", err)
		}
		var p report.Payload
		if err := json.Unmarshal(b, &p); err != nil {
			s.log.Warnw("quarantining unreadable spool file", "file", name, "error", err)
			_ = os.Rename(path, path+".corrupt")
			continue
		}
		out = append(out, Entry{Name: name, Payload: p})
	}
	return out, nil
}

// Remove deletes a delivered entry.
func (s *Spool) Remove(name string) error {
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("remove spool file: %w", err)
	}
	return nil
}

// Len returns the number of pending entries.
func (s *Spool) Len() (int, error) {
	entries, err := s.Entries()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Flush re-sends up to limit spooled events oldest-first, deleting each on
// success and keeping it on failure. A non-positive limit flushes everything.
// It returns how many events were sent and how many remain.
func (s *Spool) Flush(send func(report.Payload) error, limit int) (sent, kept int, err error) {
	entries, err := s.Entries()
	if err != nil {
		return 0, 0, err
	}
	for i, e := range entries {
		if limit > 0 && i >= limit {
			kept += len(entries) - i
			break
		}
		if sendErr := send(e.Payload); sendErr != nil {
			s.log.Warnw("spooled event still undeliverable", "file", e.Name, "error", sendErr)
			kept++
			continue
		}
		if err := s.Remove(e.Name); err != nil {
			return sent, kept, err
		}
		sent++
	}
	return sent, kept, nil
}
