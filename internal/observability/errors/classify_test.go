package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/redis-bulk-actions/internal/domain/bulk"
)

type replyError string

func (e replyError) Error() string { return string(e) }

// RedisError marks replyError as a server reply, like go-redis does for its own type.
func (replyError) RedisError() {}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "no nodes", err: fmt.Errorf("prepare: %w", bulk.ErrNoNodes), want: "no_nodes"},
		{name: "invalid state", err: fmt.Errorf("start: %w", bulk.ErrInvalidState), want: "invalid_state"},
		{name: "deadline", err: fmt.Errorf("scan: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "readonly reply", err: fmt.Errorf("unlink: %w", replyError("READONLY You can't write against a read only replica.")), want: "redis_readonly"},
		{name: "noperm reply", err: replyError("NOPERM this user has no permissions"), want: "redis_noperm"},
		{name: "network", err: &net.OpError{Op: "dial", Net: "tcp", Err: goerrors.New("connection refused")}, want: "network"},
		{name: "plain", err: goerrors.New("boom"), want: "errors_errorstring"},
		{name: "wrapped plain", err: fmt.Errorf("outer: %w", goerrors.New("boom")), want: "errors_errorstring"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
