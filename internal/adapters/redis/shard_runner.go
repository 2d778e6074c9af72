package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	"github.com/target/redis-bulk-actions/internal/domain/model"
)

// RunnerConfig describes the action every runner of one job applies.
type RunnerConfig struct {
	Type    model.ActionType
	Filter  model.Filter
	MaxKeys int
	Logger  *slog.Logger
}

// NewRunnerFactory returns a factory producing ShardRunners for cfg.
func NewRunnerFactory(cfg RunnerConfig) bulk.RunnerFactory {
	return bulk.RunnerFactoryFunc(func(reporter bulk.Reporter, node bulk.Node) (bulk.Runner, error) {
		shard, ok := node.(*ShardNode)
		if !ok {
			return nil, fmt.Errorf("unsupported node %T", node)
		}
		return NewShardRunner(shard, reporter, cfg)
	})
}

// keyAction queues the job's command for one key on a pipeline.
type keyAction func(ctx context.Context, pipe redis.Pipeliner, key string) *redis.IntCmd

func actionFor(t model.ActionType) (keyAction, error) {
	switch t {
	case model.ActionTypeDelete:
		return func(ctx context.Context, pipe redis.Pipeliner, key string) *redis.IntCmd {
			return pipe.Del(ctx, key)
		}, nil
	case model.ActionTypeUnlink:
		return func(ctx context.Context, pipe redis.Pipeliner, key string) *redis.IntCmd {
			return pipe.Unlink(ctx, key)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported bulk action type %q", t)
	}
}

// ShardRunner scans one node and applies the action to every matching key, one pipeline
// per SCAN batch.
type ShardRunner struct {
	node     *ShardNode
	reporter bulk.Reporter
	filter   model.Filter
	action   keyAction
	summary  *bulk.Summary
	logger   *slog.Logger

	mu      sync.Mutex
	cursor  uint64
	total   int64
	scanned int64
}

var _ bulk.Runner = (*ShardRunner)(nil)

// NewShardRunner constructs a runner for node.
func NewShardRunner(node *ShardNode, reporter bulk.Reporter, cfg RunnerConfig) (*ShardRunner, error) {
	action, err := actionFor(cfg.Type)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ShardRunner{
		node:     node,
		reporter: reporter,
		filter:   cfg.Filter.Normalize(),
		action:   action,
		summary:  bulk.NewSummary(cfg.MaxKeys),
		logger:   logger.With("component", "shard_runner", "addr", node.addr, "command", cfg.Type.Command()),
	}, nil
}

// PrepareToStart reads the node's key count as the progress total and rewinds the cursor.
func (r *ShardRunner) PrepareToStart(ctx context.Context) error {
	total, err := r.node.client.DBSize(ctx).Result()
	if err != nil {
		return fmt.Errorf("dbsize %s: %w", r.node.addr, err)
	}

	r.mu.Lock()
	r.total = total
	r.cursor = 0
	r.scanned = 0
	r.mu.Unlock()
	return nil
}

// Run iterates the keyspace until the cursor wraps to zero, the context is cancelled or
// the job leaves running. A failed SCAN fails the runner; per-key failures are recorded.
func (r *ShardRunner) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil || r.reporter.Status() != model.StatusRunning {
			return nil
		}

		r.mu.Lock()
		cursor := r.cursor
		r.mu.Unlock()

		keys, next, err := r.scan(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("scan %s: %w", r.node.addr, err)
		}

		r.advance(next)
		if len(keys) > 0 {
			r.apply(ctx, keys)
		}
		r.reporter.ChangeState()

		if next == 0 {
			return nil
		}
	}
}

func (r *ShardRunner) scan(ctx context.Context, cursor uint64) ([]string, uint64, error) {
	if r.filter.Type != "" {
		return r.node.client.ScanType(ctx, cursor, r.filter.Match, r.filter.Count, r.filter.Type).Result()
	}
	return r.node.client.Scan(ctx, cursor, r.filter.Match, r.filter.Count).Result()
}

func (r *ShardRunner) advance(next uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = next
	if next == 0 {
		r.scanned = r.total
		return
	}
	r.scanned = min(r.scanned+r.filter.Count, r.total)
}

// apply sends one pipeline for the batch and records the outcome of every key.
func (r *ShardRunner) apply(ctx context.Context, keys []string) {
	pipe := r.node.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, key := range keys {
		cmds[i] = r.action(ctx, pipe, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.DebugContext(ctx, "pipeline returned errors", "keys", len(keys), "error", err)
	}

	affected := make([]string, 0, len(keys))
	var failures []model.ItemError
	for i, cmd := range cmds {
		n, err := cmd.Result()
		switch {
		case err != nil:
			failures = append(failures, model.ItemError{Key: keys[i], Error: err.Error()})
		case n > 0:
			affected = append(affected, keys[i])
		}
	}

	r.summary.AddProcessed(int64(len(keys)))
	r.summary.AddSuccess(int64(len(affected)))
	r.summary.AddErrors(failures)
	r.summary.AddKeys(affected)
	r.reporter.EmitDeletedKeys(affected)
}

// Progress returns the scan progress on this node.
func (r *ShardRunner) Progress() model.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.Progress{Total: r.total, Scanned: r.scanned}
}

// Summary returns the runner's result accumulator.
func (r *ShardRunner) Summary() *bulk.Summary { return r.summary }
