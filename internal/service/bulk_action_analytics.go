package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	"github.com/target/redis-bulk-actions/internal/domain/model"
	obserrors "github.com/target/redis-bulk-actions/internal/observability/errors"
	"github.com/target/redis-bulk-actions/internal/observability/metrics"
	"github.com/target/redis-bulk-actions/internal/observability/notify"
	"github.com/target/redis-bulk-actions/internal/observability/statsd"
)

// failureNotifier delivers failure notifications.
type failureNotifier interface {
	NotifyBulkActionFailure(ctx context.Context, payload notify.BulkActionFailurePayload)
}

// lifecycleCollector records running and finished actions, e.g. Prometheus collectors.
type lifecycleCollector interface {
	ObserveStarted()
	ObserveFinished(actionType, status string, seconds float64, processed int64)
}

// AnalyticsSinks groups the destinations of bulk action analytics. Every field is optional.
type AnalyticsSinks struct {
	StatsD    statsd.Sink
	Collector lifecycleCollector
	Notifier  failureNotifier
}

// BulkActionAnalyticsOptions groups dependencies for BulkActionAnalytics.
type BulkActionAnalyticsOptions struct {
	Sinks  AnalyticsSinks
	Logger *slog.Logger // Optional
}

// BulkActionAnalytics records the terminal outcome of every bulk action.
type BulkActionAnalytics struct {
	sinks  AnalyticsSinks
	logger *slog.Logger
	now    func() time.Time
}

var _ bulk.Analytics = (*BulkActionAnalytics)(nil)

// NewBulkActionAnalytics constructs a BulkActionAnalytics.
func NewBulkActionAnalytics(opts BulkActionAnalyticsOptions) *BulkActionAnalytics {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkActionAnalytics{
		sinks:  opts.Sinks,
		logger: logger.With("component", "bulk_action_analytics"),
		now:    time.Now,
	}
}

// ActionStarted records a bulk action entering the running status.
func (a *BulkActionAnalytics) ActionStarted(_ context.Context, _ model.Overview) {
	if a.sinks.Collector != nil {
		a.sinks.Collector.ObserveStarted()
	}
}

// ActionSucceeded implements bulk.Analytics.
func (a *BulkActionAnalytics) ActionSucceeded(ctx context.Context, overview model.Overview) {
	a.record(ctx, overview, metrics.OutcomeSucceeded, nil)
}

// ActionAborted implements bulk.Analytics.
func (a *BulkActionAnalytics) ActionAborted(ctx context.Context, overview model.Overview) {
	a.record(ctx, overview, metrics.OutcomeAborted, nil)
}

// ActionFailed implements bulk.Analytics and notifies the failure sinks.
func (a *BulkActionAnalytics) ActionFailed(ctx context.Context, overview model.Overview, err error) {
	a.record(ctx, overview, metrics.OutcomeFailed, err)

	if a.sinks.Notifier == nil {
		return
	}
	payload := notify.BulkActionFailurePayload{
		ActionID:   overview.ID,
		DatabaseID: overview.DatabaseID,
		ActionType: string(overview.Type),
		Match:      overview.Filter.Match,
		Processed:  overview.Summary.Processed,
		Failed:     overview.Summary.Failed,
		ErrorClass: obserrors.Classify(err),
		OccurredAt: a.now(),
		Metadata: map[string]string{
			"scanned": strconv.FormatInt(overview.Progress.Scanned, 10),
			"total":   strconv.FormatInt(overview.Progress.Total, 10),
		},
	}
	if err != nil {
		payload.Error = err.Error()
	} else {
		payload.Error = overview.Error
	}
	a.sinks.Notifier.NotifyBulkActionFailure(ctx, payload)
}

func (a *BulkActionAnalytics) record(ctx context.Context, overview model.Overview, outcome string, err error) {
	duration := time.Duration(overview.Duration) * time.Millisecond

	metrics.EmitBulkActionOutcome(a.sinks.StatsD, metrics.BulkActionMetric{
		ActionType: string(overview.Type),
		DatabaseID: overview.DatabaseID,
		Outcome:    outcome,
		Duration:   duration,
		Processed:  overview.Summary.Processed,
		Failed:     overview.Summary.Failed,
		Err:        err,
	})
	if a.sinks.Collector != nil {
		a.sinks.Collector.ObserveFinished(string(overview.Type), string(overview.Status), duration.Seconds(),
			overview.Summary.Processed)
	}

	a.logger.InfoContext(ctx, "bulk action finished",
		"job_id", overview.ID,
		"database_id", overview.DatabaseID,
		"status", overview.Status,
		"processed", overview.Summary.Processed,
		"succeeded", overview.Summary.Succeeded,
		"failed", overview.Summary.Failed,
		"duration_ms", overview.Duration,
	)
}
