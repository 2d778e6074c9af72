package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/target/redis-bulk-actions/config"
	"github.com/target/redis-bulk-actions/internal/observability/metrics"
	"github.com/target/redis-bulk-actions/internal/observability/statsd"
)

// FinishedJobEvictor removes finished bulk actions older than maxAge.
type FinishedJobEvictor interface {
	EvictFinished(ctx context.Context, maxAge time.Duration) int64
}

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Evictor FinishedJobEvictor  // Required
	Config  config.ReaperConfig // Required: reaper configuration
	Logger  *slog.Logger        // Optional: structured logger
	Metrics statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// ReaperService periodically evicts finished bulk actions from the registry so their
// runners, summaries and subscribers can be collected.
type ReaperService struct {
	evictor FinishedJobEvictor
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Evictor == nil {
		return nil, errors.New("FinishedJobEvictor is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", cfg.Interval,
			"retention", cfg.Retention,
		)
	}

	return &ReaperService{
		evictor: opts.Evictor,
		config:  cfg,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), the context error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce evicts every bulk action that finished more than the retention ago.
func (s *ReaperService) RunOnce(ctx context.Context) int64 {
	start := time.Now()
	count := s.evictor.EvictFinished(ctx, s.config.Retention)

	if count > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "evicted finished bulk actions",
			"count", count,
			"retention", s.config.Retention,
		)
	}
	s.emitMetrics(count, time.Since(start))
	return count
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) emitMetrics(count int64, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if count == 0 {
		result = metrics.ResultNoop
	}
	tags := map[string]string{"result": result}

	statsd.Batch(s.metrics, func(sink statsd.Sink) {
		sink.Count("bulk_action.reaper.run", 1, tags)
		if count > 0 {
			sink.Count("bulk_action.reaper.evicted", count, metrics.CloneTags(tags))
		}
		if elapsed > 0 {
			sink.Timing("bulk_action.reaper.duration", elapsed, metrics.CloneTags(tags))
		}
		sink.Gauge("bulk_action.reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	})
}
