// Package metrics emits standardised bulk action metrics to a StatsD sink.
package metrics

import (
	"time"

	obserrors "github.com/target/redis-bulk-actions/internal/observability/errors"
	"github.com/target/redis-bulk-actions/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultNoop    = "noop"
)

// Outcome constants name the terminal counters.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

// BulkActionMetric captures one terminal bulk action outcome.
type BulkActionMetric struct {
	ActionType string
	DatabaseID string
	Outcome    string
	Duration   time.Duration
	Processed  int64
	Failed     int64
	Err        error
}

// EmitBulkActionOutcome emits the counters and timing for a finished bulk action in one batch.
func EmitBulkActionOutcome(sink statsd.Sink, in BulkActionMetric) {
	if sink == nil || in.Outcome == "" {
		return
	}

	tags := map[string]string{
		"action_type": in.ActionType,
		"database_id": in.DatabaseID,
	}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	statsd.Batch(sink, func(s statsd.Sink) {
		s.Count("bulk_action."+in.Outcome, 1, tags)
		if in.Duration > 0 {
			s.Timing("bulk_action.duration", in.Duration, CloneTags(tags))
		}
		if in.Processed > 0 {
			s.Count("bulk_action.keys.processed", in.Processed, CloneTags(tags))
		}
		if in.Failed > 0 {
			s.Count("bulk_action.keys.failed", in.Failed, CloneTags(tags))
		}
	})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
