package errors

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/redis/go-redis/v9"
)

// MapRedisError maps Redis client errors to AppError instances:
// - context timeouts/cancellations → Timeout/Canceled
// - redis.Nil → NotFound
// - network failures → Unavailable
// - server error replies → Internal
//
// Any other error is returned unchanged.
func MapRedisError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	case errors.Is(err, redis.Nil):
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	case isNetworkError(err):
		return &AppError{Code: ErrCodeUnavailable, Message: "Database is unreachable.", Cause: err}
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return &AppError{Code: ErrCodeInternal, Message: "The database rejected the command.", Cause: err}
	}
	return err
}

func isNetworkError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
