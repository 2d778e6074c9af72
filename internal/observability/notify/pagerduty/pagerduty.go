// Package pagerduty delivers bulk action failure notifications through the PagerDuty Events API v2.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/target/redis-bulk-actions/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	Endpoint   string // Optional: defaults to APIEndpoint
}

// Client publishes events via PagerDuty's Events API v2.
type Client struct {
	hook       notify.Webhook
	routingKey string
	source     string
	component  string
}

var _ notify.Sink = (*Client)(nil)

// NewClient constructs a PagerDuty events client from config. Callers must provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		hook: notify.Webhook{
			Name:       "pagerduty api",
			URL:        notify.Fallback(cfg.Endpoint, APIEndpoint),
			RetryLimit: cfg.RetryLimit,
			Client:     hc,
		},
		routingKey: key,
		source:     notify.Fallback(strings.TrimSpace(cfg.Source), "redis-bulk-actions"),
		component:  notify.Fallback(strings.TrimSpace(cfg.Component), "redis-bulk-actions"),
	}, nil
}

// SendBulkActionFailure submits a trigger event to PagerDuty.
func (c *Client) SendBulkActionFailure(ctx context.Context, payload notify.BulkActionFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return c.hook.Post(ctx, body)
}

func (c *Client) buildEvent(payload notify.BulkActionFailurePayload) map[string]any {
	severity := notify.Fallback(strings.ToLower(payload.Severity), notify.SeverityCritical)

	occurredAt := payload.OccurredAt.UTC()
	if payload.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	custom := map[string]any{
		"action_id":   payload.ActionID,
		"action_type": payload.ActionType,
		"database_id": payload.DatabaseID,
		"match":       payload.Match,
		"processed":   payload.Processed,
		"failed":      payload.Failed,
		"error":       payload.Error,
		"error_class": payload.ErrorClass,
	}
	for k, v := range payload.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    strings.Trim("bulk-action:"+payload.ActionID, ":"),
		"payload": map[string]any{
			"summary": fmt.Sprintf("Bulk %s %s on database %s failed",
				notify.Fallback(payload.ActionType, "action"),
				notify.Fallback(payload.ActionID, "unknown"),
				notify.Fallback(payload.DatabaseID, "unknown"),
			),
			"severity":       severity,
			"source":         c.source,
			"component":      c.component,
			"timestamp":      occurredAt.Format(time.RFC3339),
			"custom_details": custom,
		},
	}
}
