// Package notify defines the failure notification payload and the sinks that deliver it.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// BulkActionFailurePayload captures the data emitted when a bulk action fails.
type BulkActionFailurePayload struct {
	ActionID   string
	DatabaseID string
	ActionType string
	Match      string
	Processed  int64
	Failed     int64
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming bulk action failure notifications.
type Sink interface {
	SendBulkActionFailure(ctx context.Context, payload BulkActionFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload BulkActionFailurePayload) error

// SendBulkActionFailure implements the Sink interface.
func (f SinkFunc) SendBulkActionFailure(ctx context.Context, payload BulkActionFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
