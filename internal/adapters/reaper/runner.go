// Package reaper provides adapters for running the bulk action reaper.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/redis-bulk-actions/config"
	"github.com/target/redis-bulk-actions/internal/observability/statsd"
	"github.com/target/redis-bulk-actions/internal/service"
)

// Runner provides a simple adapter to run the reaper loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Evictor service.FinishedJobEvictor
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Evictor == nil {
		return nil, errors.New("bulk action evictor is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Evictor: opts.Evictor,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
