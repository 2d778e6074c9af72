package config

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// BulkActionsConfig configures the target databases and the bulk action engine.
type BulkActionsConfig struct {
	// Databases maps a logical database id to its Redis URI,
	// e.g. "cache=redis://10.0.0.5:6379,sessions=rediss://:secret@10.0.0.6:6380".
	Databases map[string]string `env:"BULK_ACTIONS_DATABASES" envKeyValSeparator:"="`

	// ClusterDatabases lists the database ids that are Redis Cluster deployments.
	ClusterDatabases []string `env:"BULK_ACTIONS_CLUSTER_DATABASES"`

	// MaxKeys caps the affected keys retained per runner summary.
	MaxKeys int `env:"BULK_ACTIONS_MAX_KEYS" envDefault:"10000"`

	// Debounce is the minimum spacing between overview pushes.
	Debounce time.Duration `env:"BULK_ACTIONS_DEBOUNCE" envDefault:"1s"`

	// ScanCount is the default SCAN COUNT when a request does not set one.
	ScanCount int64 `env:"BULK_ACTIONS_SCAN_COUNT" envDefault:"10000"`

	// ReadTimeout is applied to every target client. Large batches need more than the
	// go-redis default of 3s.
	ReadTimeout time.Duration `env:"BULK_ACTIONS_READ_TIMEOUT" envDefault:"30s"`

	// PoolSize caps connections per target node; 0 keeps the go-redis default.
	PoolSize int `env:"BULK_ACTIONS_POOL_SIZE" envDefault:"0"`
}

// Sanitize applies guardrails to bulk action configuration values.
func (c *BulkActionsConfig) Sanitize() {
	if c.MaxKeys < 1 {
		c.MaxKeys = 10000
	}
	if c.Debounce < 10*time.Millisecond {
		c.Debounce = 10 * time.Millisecond
	}
	if c.ScanCount < 1 {
		c.ScanCount = 10000
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.PoolSize < 0 {
		c.PoolSize = 0
	}

	cleaned := make(map[string]string, len(c.Databases))
	for id, uri := range c.Databases {
		id, uri = strings.TrimSpace(id), strings.TrimSpace(uri)
		if id == "" || uri == "" {
			continue
		}
		cleaned[id] = uri
	}
	c.Databases = cleaned
}

// DatabaseIDs returns the configured database ids in order.
func (c *BulkActionsConfig) DatabaseIDs() []string {
	return slices.Sorted(maps.Keys(c.Databases))
}

// Targets returns the connection configuration of every target database.
func (c *BulkActionsConfig) Targets() map[string]RedisConfig {
	targets := make(map[string]RedisConfig, len(c.Databases))
	for id, uri := range c.Databases {
		targets[id] = RedisConfig{
			URI:         uri,
			UseCluster:  slices.Contains(c.ClusterDatabases, id),
			ReadTimeout: c.ReadTimeout,
			PoolSize:    c.PoolSize,
		}
	}
	return targets
}
