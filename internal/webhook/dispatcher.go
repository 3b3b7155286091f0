package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sydlexius/artbrowser/internal/event"
	"github.com/sydlexius/artbrowser/internal/version"
)

const (
	maxAttempts    = 3
	requestTimeout = 10 * time.Second
)

// Dispatcher delivers events to every matching hook. Deliveries run in
// their own goroutines and retry with exponential backoff.
type Dispatcher struct {
	hooks      []Hook
	httpClient *http.Client
	logger     *slog.Logger
	backoff    time.Duration

	wg sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A nil client gets a default with a
// request timeout.
func NewDispatcher(hooks []Hook, client *http.Client, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Dispatcher{
		hooks:      hooks,
		httpClient: client,
		logger:     logger.With(slog.String("component", "webhook")),
		backoff:    time.Second,
	}
}

// HandleEvent is an event.Handler.
func (d *Dispatcher) HandleEvent(e event.Event) {
	for _, h := range d.hooks {
		if !h.Matches(e.Type) {
			continue
		}
		body, err := h.payload(e)
		if err != nil {
			d.logger.Error("encoding webhook payload", "webhook", h.Name, "error", err)
			continue
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(h, e.Type, body)
		}()
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(h Hook, t event.Type, body []byte) {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			time.Sleep(d.backoff << (attempt - 1))
		}
		if lastErr = d.send(h.URL, body); lastErr == nil {
			d.logger.Debug("webhook delivered", "webhook", h.Name, "event", string(t), "attempt", attempt+1)
			return
		}
		d.logger.Warn("webhook delivery failed", "webhook", h.Name, "event", string(t), "attempt", attempt+1, "error", lastErr)
	}
	d.logger.Error("webhook delivery gave up", "webhook", h.Name, "event", string(t), "error", lastErr)
}

func (d *Dispatcher) send(url string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "artbrowser-webhook/"+version.Version)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()       //nolint:errcheck
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
