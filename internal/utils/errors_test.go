package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o op" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryableSendError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "deadline", err: context.DeadlineExceeded, expected: true},
		{name: "cancelled", err: context.Canceled, expected: false},
		{name: "throttled", err: statusErr(429), expected: true},
		{name: "bad gateway", err: statusErr(502), expected: true},
		{name: "wrapped 503", err: fmt.Errorf("send: %w", statusErr(503)), expected: true},
		{name: "forbidden", err: statusErr(403), expected: false},
		{name: "bad request", err: statusErr(400), expected: false},
		{name: "net timeout", err: timeoutErr{}, expected: true},
		{name: "connection reset text", err: errors.New("read tcp: connection reset by peer"), expected: true},
		{name: "unexpected eof", err: errors.New("unexpected EOF"), expected: true},
		{name: "chat not found", err: errors.New("Bad Request: chat not found"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableSendError(tt.err); got != tt.expected {
				t.Errorf("IsRetryableSendError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
