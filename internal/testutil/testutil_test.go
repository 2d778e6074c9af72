package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "1", want: true},
		{value: "TRUE", want: true},
		{value: "yes", want: true},
		{value: "y", want: true},
		{value: "0"},
		{value: "no"},
		{value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TESTUTIL_FLAG", tt.value)
			assert.Equal(t, tt.want, envBool("TESTUTIL_FLAG"))
		})
	}
}

func TestRequireRedis(t *testing.T) {
	t.Setenv("TEST_REQUIRE_REDIS", "")
	t.Setenv("TEST_REQUIRE_INFRA", "")
	assert.False(t, requireRedis())

	t.Setenv("TEST_REQUIRE_INFRA", "true")
	assert.True(t, requireRedis())
}

func TestRedisDBOverride(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		want   int
		wantOK bool
	}{
		{name: "unset"},
		{name: "valid", value: "7", want: 7, wantOK: true},
		{name: "zero", value: "0", want: 0, wantOK: true},
		{name: "negative", value: "-1"},
		{name: "garbage", value: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_REDIS_DB", tt.value)
			got, ok := redisDBOverride()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
