// Package slack delivers bulk action failure notifications to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/target/redis-bulk-actions/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// ActionURLPrefix links the action id to the API, e.g. "https://bulk.example.com/api/bulk-actions".
	ActionURLPrefix string
}

// Client delivers failure notifications to a Slack webhook.
type Client struct {
	hook            notify.Webhook
	channel         string
	username        string
	actionURLPrefix string
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
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
			Name:       "slack webhook",
			URL:        webhookURL,
			RetryLimit: cfg.RetryLimit,
			Client:     hc,
		},
		channel:         strings.TrimSpace(cfg.Channel),
		username:        notify.Fallback(strings.TrimSpace(cfg.Username), "redis-bulk-actions"),
		actionURLPrefix: strings.TrimSpace(cfg.ActionURLPrefix),
	}, nil
}

// SendBulkActionFailure posts a formatted message to Slack.
func (c *Client) SendBulkActionFailure(ctx context.Context, payload notify.BulkActionFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return c.hook.Post(ctx, body)
}

func (c *Client) formatMessage(payload notify.BulkActionFailurePayload) map[string]any {
	timestamp := payload.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var text strings.Builder
	text.WriteString("*Bulk action failed*")
	if action := c.formatActionValue(payload.ActionID); action != "" {
		text.WriteString(" ")
		text.WriteString(action)
	}
	if payload.ActionType != "" {
		text.WriteString(" (")
		text.WriteString(payload.ActionType)
		text.WriteByte(')')
	}
	text.WriteByte('\n')

	appendField(&text, "Severity", notify.Fallback(payload.Severity, notify.SeverityCritical))
	appendField(&text, "Database", escapeText(payload.DatabaseID))
	appendField(&text, "Match", escapeText(payload.Match))
	appendField(&text, "Processed", strconv.FormatInt(payload.Processed, 10))
	appendField(&text, "Failed", strconv.FormatInt(payload.Failed, 10))
	appendField(&text, "Error class", payload.ErrorClass)
	appendField(&text, "Error", escapeText(payload.Error))
	appendMetadata(&text, payload.Metadata)
	text.WriteString("• Timestamp: ")
	text.WriteString(timestamp.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

// formatActionValue renders the action id, linked when a valid prefix is configured.
func (c *Client) formatActionValue(actionID string) string {
	id := escapeText(strings.TrimSpace(actionID))
	if id == "" {
		return ""
	}
	if link := c.actionLink(strings.TrimSpace(actionID)); link != "" {
		return fmt.Sprintf("<%s|%s>", link, id)
	}
	return "`" + id + "`"
}

func (c *Client) actionLink(actionID string) string {
	if c.actionURLPrefix == "" {
		return ""
	}
	u, err := url.Parse(c.actionURLPrefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	link, err := url.JoinPath(u.String(), actionID)
	if err != nil {
		return ""
	}
	return link
}

func escapeText(value string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(value)
}

func appendField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(text, "• %s: %s\n", label, value)
}

func appendMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	text.WriteString("• Metadata:\n")
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(text, "    • %s: %s\n", k, metadata[k])
	}
}
