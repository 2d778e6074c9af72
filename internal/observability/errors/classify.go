// Package errors derives low-cardinality error classes for metric tags and alerts.
package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/target/redis-bulk-actions/internal/domain/bulk"
)

// Classify returns a normalized error class suitable for tagging metrics and alerts.
//
// Engine sentinels, context errors, Redis error replies and network failures get stable
// names (e.g. "no_nodes", "timeout", "redis_readonly", "network"). Anything else is named
// after the innermost concrete error type in snake_case-ish form.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if class := knownClass(err); class != "" {
		return class
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}

func knownClass(err error) string {
	switch {
	case goerrors.Is(err, bulk.ErrNoNodes):
		return "no_nodes"
	case goerrors.Is(err, bulk.ErrInvalidState):
		return "invalid_state"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	var replyErr redis.Error
	if goerrors.As(err, &replyErr) {
		return redisReplyClass(replyErr.Error())
	}

	var netErr net.Error
	if goerrors.As(err, &netErr) {
		return "network"
	}
	return ""
}

// redisReplyClass keys a server reply by its error prefix: "READONLY You can't write..."
// becomes "redis_readonly".
func redisReplyClass(msg string) string {
	prefix, _, _ := strings.Cut(strings.TrimSpace(msg), " ")
	prefix = strings.ToLower(strings.Trim(prefix, "-"))
	if prefix == "" {
		return "redis_error"
	}
	return "redis_" + prefix
}
