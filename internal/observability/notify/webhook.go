package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Webhook posts JSON bodies to an HTTP endpoint with linear-backoff retries.
type Webhook struct {
	Name       string // used in error messages, e.g. "slack"
	URL        string
	RetryLimit int
	Client     *http.Client
}

// Post delivers body, retrying up to RetryLimit times on failure.
func (w Webhook) Post(ctx context.Context, body []byte) error {
	attempts := max(w.RetryLimit, 0) + 1
	var lastErr error
	for attempt := range attempts {
		lastErr = w.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (w Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", w.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := w.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", w.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		closeErr := resp.Body.Close()
		if readErr != nil {
			return errors.Join(fmt.Errorf("read %s error response: %w", w.Name, readErr), closeErr)
		}
		return fmt.Errorf("%s %s: %s", w.Name, resp.Status, strings.TrimSpace(string(respBody)))
	}

	_, drainErr := io.Copy(io.Discard, resp.Body)
	closeErr := resp.Body.Close()
	if drainErr != nil {
		return errors.Join(fmt.Errorf("drain %s response body: %w", w.Name, drainErr), closeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close response body: %w", closeErr)
	}
	return nil
}

// Fallback returns fallback when value is blank.
func Fallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
