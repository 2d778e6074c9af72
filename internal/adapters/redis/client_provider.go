package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/target/redis-bulk-actions/config"
	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	"github.com/target/redis-bulk-actions/internal/domain/model"
	apperrors "github.com/target/redis-bulk-actions/internal/errors"
)

// ErrUnknownDatabase is returned for a database id that is not configured.
var ErrUnknownDatabase = errors.New("unknown database")

// Connector opens a client for one configured database.
type Connector func(cfg config.RedisConfig) (redis.UniversalClient, error)

// ClientProviderOptions configure a ClientProvider.
type ClientProviderOptions struct {
	Databases map[string]config.RedisConfig // Required
	Connect   Connector                     // Required
	Logger    *slog.Logger                  // Optional
}

// ClientProvider resolves logical database ids to connected clients and caches them.
type ClientProvider struct {
	targets map[string]config.RedisConfig
	connect Connector
	logger  *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientProvider constructs a ClientProvider.
func NewClientProvider(opts ClientProviderOptions) (*ClientProvider, error) {
	if opts.Connect == nil {
		return nil, errors.New("redis connector is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	targets := make(map[string]config.RedisConfig, len(opts.Databases))
	for id, cfg := range opts.Databases {
		targets[id] = cfg
	}
	return &ClientProvider{
		targets: targets,
		connect: opts.Connect,
		logger:  logger.With("component", "redis_client_provider"),
		clients: make(map[string]*Client),
	}, nil
}

// Databases lists the configured database ids in order.
func (p *ClientProvider) Databases() []string {
	ids := make([]string, 0, len(p.targets))
	for id := range p.targets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Get returns the client of databaseID, connecting on first use.
func (p *ClientProvider) Get(ctx context.Context, databaseID string) (*Client, error) {
	p.mu.RLock()
	c, ok := p.clients[databaseID]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	cfg, ok := p.targets[databaseID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDatabase, databaseID)
	}

	v, err, _ := p.group.Do(databaseID, func() (any, error) {
		p.mu.RLock()
		existing, found := p.clients[databaseID]
		p.mu.RUnlock()
		if found {
			return existing, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rdb, err := p.connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database %s: %w", databaseID, err)
		}
		client := NewClient(databaseID, rdb)

		p.mu.Lock()
		p.clients[databaseID] = client
		p.mu.Unlock()

		p.logger.InfoContext(ctx, "database client ready", "database_id", databaseID, "cluster", cfg.UseCluster)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// Resolve returns the bulk client of databaseID with errors mapped to application codes:
// an unconfigured id is NotFound and a failed connection is Unavailable.
func (p *ClientProvider) Resolve(ctx context.Context, databaseID string) (bulk.Client, error) {
	client, err := p.Get(ctx, databaseID)
	if err == nil {
		return client, nil
	}
	if errors.Is(err, ErrUnknownDatabase) {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "database %s is not configured", databaseID)
	}
	if mapped := apperrors.MapRedisError(err); apperrors.GetCode(mapped) != "" {
		return nil, mapped
	}
	return nil, apperrors.Wrapf(err, apperrors.ErrCodeUnavailable, "database %s is unreachable", databaseID)
}

// NodeInfo lists the primary nodes of a database with their key counts.
//
// Best effort: a node whose DBSIZE fails is skipped instead of failing the listing, and
// nodes are deduplicated by address.
func (p *ClientProvider) NodeInfo(ctx context.Context, databaseID string) ([]model.NodeInfo, error) {
	client, err := p.Resolve(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	nodes, err := client.PrimaryNodes(ctx)
	if err != nil {
		return nil, apperrors.MapRedisError(err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]model.NodeInfo, len(nodes))
	)
	group, gctx := errgroup.WithContext(ctx)
	for _, node := range nodes {
		shard, ok := node.(*ShardNode)
		if !ok {
			continue
		}
		group.Go(func() error {
			size, serr := shard.client.DBSize(gctx).Result()
			if serr != nil {
				p.logger.WarnContext(gctx, "skipping node in listing",
					"database_id", databaseID,
					"addr", shard.addr,
					"error", serr,
				)
				return nil
			}
			mu.Lock()
			seen[shard.addr] = model.NodeInfo{Addr: shard.addr, Keys: size}
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	out := make([]model.NodeInfo, 0, len(seen))
	for _, info := range seen {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b model.NodeInfo) int { return strings.Compare(a.Addr, b.Addr) })
	return out, nil
}

// Close closes every connected client.
func (p *ClientProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for id, c := range p.clients {
		if err := c.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database %s: %w", id, err))
		}
		delete(p.clients, id)
	}
	return errors.Join(errs...)
}
