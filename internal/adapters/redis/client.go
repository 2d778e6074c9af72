// Package redis provides the go-redis backed adapters of the bulk action engine: database
// client resolution, per-shard runners and overview pub/sub.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/target/redis-bulk-actions/internal/domain/bulk"
)

// ShardNode is one primary node of a database together with a client bound to it.
type ShardNode struct {
	addr   string
	client redis.Cmdable
}

// NewShardNode binds client to the node at addr.
func NewShardNode(addr string, client redis.Cmdable) *ShardNode {
	return &ShardNode{addr: addr, client: client}
}

// Addr returns the node address.
func (n *ShardNode) Addr() string { return n.addr }

// Client wraps the connection to one logical database.
type Client struct {
	databaseID string
	rdb        redis.UniversalClient
}

var _ bulk.Client = (*Client)(nil)

// NewClient wraps rdb as the client of databaseID.
func NewClient(databaseID string, rdb redis.UniversalClient) *Client {
	return &Client{databaseID: databaseID, rdb: rdb}
}

// DatabaseID returns the logical database id.
func (c *Client) DatabaseID() string { return c.databaseID }

// Redis returns the underlying go-redis client.
//
//nolint:ireturn // callers need the same client kind the provider connected.
func (c *Client) Redis() redis.UniversalClient { return c.rdb }

// PrimaryNodes snapshots the current primary topology. Cluster databases yield one node per
// master sorted by address; anything else yields a single node.
func (c *Client) PrimaryNodes(ctx context.Context) ([]bulk.Node, error) {
	switch rdb := c.rdb.(type) {
	case *redis.ClusterClient:
		return clusterPrimaries(ctx, rdb)
	case *redis.Client:
		return []bulk.Node{NewShardNode(rdb.Options().Addr, rdb)}, nil
	default:
		return nil, fmt.Errorf("unsupported redis client %T for database %s", c.rdb, c.databaseID)
	}
}

func clusterPrimaries(ctx context.Context, rdb *redis.ClusterClient) ([]bulk.Node, error) {
	var (
		mu     sync.Mutex
		shards []*ShardNode
	)
	err := rdb.ForEachMaster(ctx, func(_ context.Context, shard *redis.Client) error {
		mu.Lock()
		defer mu.Unlock()
		shards = append(shards, NewShardNode(shard.Options().Addr, shard))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate cluster masters: %w", err)
	}
	if len(shards) == 0 {
		return nil, errors.New("cluster reported no masters")
	}

	slices.SortFunc(shards, func(a, b *ShardNode) int { return strings.Compare(a.addr, b.addr) })
	nodes := make([]bulk.Node, len(shards))
	for i, s := range shards {
		nodes[i] = s
	}
	return nodes, nil
}
