package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// deliveryTransport is a sentry.Transport that performs the envelope POST
// itself and keeps the outcome. The library's own transports log network
// errors internally and never surface them, which would let the spool delete
// events that were never delivered. Embedding HTTPSyncTransport keeps the
// full Transport method set satisfied; the embedded transport is never
// configured and never sends.
type deliveryTransport struct {
	*sentry.HTTPSyncTransport

	httpClient *http.Client

	mu      sync.Mutex
	dsn     *sentry.Dsn
	lastErr error
}

func newDeliveryTransport(timeout time.Duration) *deliveryTransport {
	return &deliveryTransport{
		HTTPSyncTransport: sentry.NewHTTPSyncTransport(),
		httpClient:        &http.Client{Timeout: timeout},
	}
}

// Configure parses the DSN. Called by sentry.NewClient.
func (t *deliveryTransport) Configure(options sentry.ClientOptions) {
	dsn, err := sentry.NewDsn(options.Dsn)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.lastErr = fmt.Errorf("parse DSN: %w", err)
		return
	}
	t.dsn = dsn
}

// SendEvent posts the event as a single-item envelope. Failures are recorded
// for Err; the signature gives no way to return them.
func (t *deliveryTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dsn == nil {
		if t.lastErr == nil {
			t.lastErr = errors.New("transport not configured")
		}
		return
	}

	body, err := envelope(event)
	if err != nil {
		t.lastErr = fmt.Errorf("encode event: %w", err)
		return
	}
	req, err := http.NewRequest(http.MethodPost, t.dsn.GetAPIURL().String(), bytes.NewReader(body))
	if err != nil {
		t.lastErr = err
		return
	}
	for k, v := range t.dsn.RequestHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.lastErr = fmt.Errorf("post event: %w", err)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		t.lastErr = fmt.Errorf("sentry server responded %s", resp.Status)
		return
	}
	t.lastErr = nil
}

// Err returns the outcome of the last SendEvent.
func (t *deliveryTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Flush reports whether the last delivery succeeded; there is no queue.
func (t *deliveryTransport) Flush(time.Duration) bool {
	return t.Err() == nil
}

// envelope frames the event JSON in the envelope format the API expects:
// an envelope header, an item header, and the item payload, newline separated.
func envelope(event *sentry.Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	header, err := json.Marshal(map[string]interface{}{
		"event_id": event.EventID,
		"sent_at":  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')
	item, err := json.Marshal(map[string]interface{}{
		"type":   "event",
		"length": len(body),
	})
	if err != nil {
		return nil, err
	}
	buf.Write(item)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes(), nil
}
