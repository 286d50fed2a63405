package logging

import (
	"context"
	"time"
)

// Turn outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// TurnRecord is the audit entry written after each generation attempt. It
// never carries message text or keys.
type TurnRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	TurnID     string    `json:"turn_id"`
	UserID     int64     `json:"user_id"`
	ChatID     int64     `json:"chat_id,omitempty"`
	ModelRef   string    `json:"model_ref"`
	Provider   string    `json:"provider,omitempty"`
	ModelName  string    `json:"model_name,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	ProviderMs int64     `json:"provider_ms"`
	TotalMs    int64     `json:"total_ms"`
	Outcome    string    `json:"outcome"`
	ErrorClass string    `json:"error_class,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Persisted  bool      `json:"persisted"`
}

// Sink receives turn records
type Sink interface {
	Enqueue(rec *TurnRecord) error
	Shutdown(ctx context.Context) error
}

// NoopSink discards records
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *TurnRecord) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}

// MultiSink fans records out to several sinks
type MultiSink []Sink

// Enqueue forwards rec to every sink and returns the first error
func (m MultiSink) Enqueue(rec *TurnRecord) error {
	var first error
	for _, s := range m {
		if err := s.Enqueue(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Shutdown stops every sink and returns the first error
func (m MultiSink) Shutdown(ctx context.Context) error {
	var first error
	for _, s := range m {
		if err := s.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
