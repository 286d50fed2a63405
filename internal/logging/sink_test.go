package logging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNoopSink(t *testing.T) {
	sink := NewNoopSink()

	rec := &TurnRecord{
		Timestamp: time.Now(),
		TurnID:    "test-123",
		UserID:    456,
		Provider:  "openai",
		ModelName: "gpt-4",
		Outcome:   OutcomeSuccess,
	}

	err := sink.Enqueue(rec)
	if err != nil {
		t.Errorf("Expected no error from NoopSink.Enqueue, got %v", err)
	}

	err = sink.Shutdown(context.Background())
	if err != nil {
		t.Errorf("Expected no error from NoopSink.Shutdown, got %v", err)
	}
}

type recordingSink struct {
	mu      sync.Mutex
	records []*TurnRecord
	err     error
	stopped bool
}

func (s *recordingSink) Enqueue(rec *TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *recordingSink) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return s.err
}

func TestMultiSink(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}
	sink := MultiSink{failing, ok}

	if err := sink.Enqueue(&TurnRecord{UserID: 1}); err == nil {
		t.Error("Expected the failing sink's error")
	}
	if len(ok.records) != 1 {
		t.Errorf("Expected record to reach every sink, got %d", len(ok.records))
	}

	if err := sink.Shutdown(context.Background()); err == nil {
		t.Error("Expected shutdown error to propagate")
	}
	if !ok.stopped || !failing.stopped {
		t.Error("Expected every sink to be shut down")
	}
}

func TestS3SinkConfig(t *testing.T) {
	config := S3SinkConfig{
		BufferSize:    1000,
		FlushSize:     100,
		FlushInterval: 5 * time.Minute,
		S3Bucket:      "test-bucket",
		S3Region:      "us-east-1",
		S3Prefix:      "turns/",
		PodName:       "test-pod",
	}

	if config.BufferSize != 1000 {
		t.Errorf("Expected buffer size 1000, got %d", config.BufferSize)
	}

	if config.FlushSize != 100 {
		t.Errorf("Expected flush size 100, got %d", config.FlushSize)
	}

	if config.S3Bucket != "test-bucket" {
		t.Errorf("Expected bucket 'test-bucket', got '%s'", config.S3Bucket)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"debug", Debug, true},
		{"INFO", Info, true},
		{"warning", Warning, true},
		{"warn", Warning, true},
		{" error ", Error, true},
		{"critical", Critical, true},
		{"verbose", NotSet, false},
		{"", NotSet, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConfigureFromEnv(t *testing.T) {
	previous := CurrentLevel()
	defer SetLogLevel(previous)

	t.Setenv("LOCAL", "true")
	t.Setenv("LOG_LEVEL", "")
	SetLogLevel(Warning)
	ConfigureFromEnv()
	if CurrentLevel() != Debug {
		t.Errorf("Expected LOCAL=true to enable debug, got %d", CurrentLevel())
	}

	t.Setenv("LOG_LEVEL", "error")
	ConfigureFromEnv()
	if CurrentLevel() != Error {
		t.Errorf("Expected LOG_LEVEL to win over LOCAL, got %d", CurrentLevel())
	}
}
