package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// StatusCoder is implemented by transport errors that carry an upstream
// HTTP-like status code.
type StatusCoder interface {
	StatusCode() int
}

// IsRetryableSendError reports whether a failed outbound chat delivery is
// worth another attempt: timeouts, throttling and upstream 5xx.
func IsRetryableSendError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code == 429 || code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	retryable := []string{
		"timeout",
		"connection reset",
		"connection refused",
		"too many requests",
		"bad gateway",
		"service unavailable",
		"eof",
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryable {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
