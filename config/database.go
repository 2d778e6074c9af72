package config

import "time"

// RedisConfig describes one Redis deployment: the service Redis or a target database.
// Zero tuning values keep the go-redis defaults.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`

	DialTimeout time.Duration `env:"DIAL_TIMEOUT"`
	// ReadTimeout bounds one reply; a pipeline of SCAN COUNT deletes is one reply.
	ReadTimeout time.Duration `env:"READ_TIMEOUT"`
	PoolSize    int           `env:"POOL_SIZE"`
}
