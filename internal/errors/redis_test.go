package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/redis/go-redis/v9"
)

type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError()     {}

func TestMapRedisError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "deadline", err: fmt.Errorf("scan: %w", context.DeadlineExceeded), want: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, want: ErrCodeCanceled},
		{name: "nil reply", err: redis.Nil, want: ErrCodeNotFound},
		{name: "eof", err: fmt.Errorf("dbsize: %w", io.EOF), want: ErrCodeUnavailable},
		{name: "dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, want: ErrCodeUnavailable},
		{name: "server reply", err: replyError("WRONGTYPE Operation against a key holding the wrong kind of value"), want: ErrCodeInternal},
		{name: "already mapped", err: Validation("bad filter"), want: ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapRedisError(tt.err)
			if code := GetCode(got); code != tt.want {
				t.Errorf("MapRedisError() code = %v, want %v", code, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("MapRedisError() should preserve the cause")
			}
		})
	}
}

func TestMapRedisError_PassThrough(t *testing.T) {
	if MapRedisError(nil) != nil {
		t.Error("MapRedisError(nil) should be nil")
	}
	plain := errors.New("plain")
	if got := MapRedisError(plain); got != plain {
		t.Errorf("MapRedisError() = %v, want original error", got)
	}
}
