package bootstrap

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/redis-bulk-actions/config"
)

func TestNewDirectClientTuning(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		wantAddr string
		wantRead time.Duration
		wantPool int
	}{
		{
			name:     "plain address",
			cfg:      config.RedisConfig{URI: "10.0.0.5:6379", ReadTimeout: 30 * time.Second, PoolSize: 4},
			wantAddr: "10.0.0.5:6379",
			wantRead: 30 * time.Second,
			wantPool: 4,
		},
		{
			name:     "url keeps its own read timeout when unset",
			cfg:      config.RedisConfig{URI: "redis://10.0.0.6:6380/0?read_timeout=7s"},
			wantAddr: "10.0.0.6:6380",
			wantRead: 7 * time.Second,
		},
		{
			name:     "url overridden by config",
			cfg:      config.RedisConfig{URI: "redis://10.0.0.6:6380/0?read_timeout=7s", ReadTimeout: time.Minute},
			wantAddr: "10.0.0.6:6380",
			wantRead: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, addr, err := newDirectClient(tt.cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = client.Close() })

			assert.Equal(t, tt.wantAddr, addr)
			rc, ok := client.(*redis.Client)
			require.True(t, ok)
			assert.Equal(t, tt.wantRead, rc.Options().ReadTimeout)
			if tt.wantPool > 0 {
				assert.Equal(t, tt.wantPool, rc.Options().PoolSize)
			}
		})
	}
}

func TestNewDirectClientRequiresURI(t *testing.T) {
	_, _, err := newDirectClient(config.RedisConfig{URI: " "})
	require.Error(t, err)
}

func TestNewClusterClientFallsBackToURI(t *testing.T) {
	client, desc, err := newClusterClient(config.RedisConfig{
		URI:         "redis://:secret@10.0.1.1:7000",
		ReadTimeout: 20 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, "cluster:10.0.1.1:7000", desc)
	cc, ok := client.(*redis.ClusterClient)
	require.True(t, ok)
	assert.Equal(t, "secret", cc.Options().Password)
	assert.Equal(t, 20*time.Second, cc.Options().ReadTimeout)
}

func TestNewClusterClientRequiresAddress(t *testing.T) {
	_, _, err := newClusterClient(config.RedisConfig{})
	require.Error(t, err)
}
