// Package bulk implements the bulk action execution engine: per-shard runners fanned out
// from a single job, bounded result aggregation, a sticky terminal state machine and
// rate-limited overview pushes.
package bulk

import (
	"context"

	"github.com/target/redis-bulk-actions/internal/domain/model"
)

// Node is one primary shard node of a database.
type Node interface {
	Addr() string
}

// Client enumerates the primary shard nodes of one logical database.
type Client interface {
	PrimaryNodes(ctx context.Context) ([]Node, error)
}

// Runner executes a bulk action against exactly one shard node.
//
// Progress and Summary must be safe to call while Run is executing.
type Runner interface {
	PrepareToStart(ctx context.Context) error
	Run(ctx context.Context) error
	Progress() model.Progress
	Summary() *Summary
}

// Reporter is the callback surface a runner uses to notify its job.
type Reporter interface {
	// EmitDeletedKeys streams a batch of affected keys to report subscribers.
	EmitDeletedKeys(keys []string)
	// ChangeState schedules a debounced overview push.
	ChangeState()
	// Status returns the job's current status.
	Status() model.Status
}

// RunnerFactory constructs the runner for one node.
type RunnerFactory interface {
	NewRunner(reporter Reporter, node Node) (Runner, error)
}

// RunnerFactoryFunc adapts a function to the RunnerFactory interface.
type RunnerFactoryFunc func(reporter Reporter, node Node) (Runner, error)

// NewRunner implements RunnerFactory.
func (f RunnerFactoryFunc) NewRunner(reporter Reporter, node Node) (Runner, error) {
	return f(reporter, node)
}

// Channel is a push channel. A failing Emit means the receiver is gone.
type Channel interface {
	Emit(event string, payload any) error
}

// Analytics receives exactly one terminal call per job.
type Analytics interface {
	ActionSucceeded(ctx context.Context, overview model.Overview)
	ActionFailed(ctx context.Context, overview model.Overview, err error)
	ActionAborted(ctx context.Context, overview model.Overview)
}
