package queue

import (
	"context"
	"time"
)

// Package queue buffers work that must not block a chat turn. Two backends
// share one interface:
//
// 1. Memory Queue (channel-based):
//    - Lost on restart
//    - Used by single-process deployments and tests
//
// 2. Redis Queue (Redis list-based):
//    - Survives restarts
//    - Shared by several bot replicas
//
// Flow:
//
//	┌─────────────┐
//	│  Chat turn  │
//	└──────┬──────┘
//	       │
//	       ├─────────────────────────┐
//	       ▼                         ▼
//	┌──────────────┐         ┌──────────────┐
//	│ History      │         │ Turn audit   │
//	│ Queue        │         │ Buffer       │
//	└──────┬───────┘         └──────┬───────┘
//	       ▼                         ▼
//	┌──────────────┐         ┌──────────────┐
//	│ History      │         │ S3 sink      │
//	│ Worker       │         │ (batches)    │
//	└──────┬───────┘         └──────┬───────┘
//	       │ (retry)                 │
//	       ├─────────┐               ▼
//	       ▼         ▼         ┌──────────┐
//	 ┌──────────┐ ┌─────┐      │  Bucket  │
//	 │ Postgres │ │ DLQ │      └──────────┘
//	 └──────────┘ └─────┘

// Queue defines the interface for message queuing
type Queue interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item interface{}) error

	// Dequeue retrieves up to maxItems, blocking until at least one is
	// available or ctx is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]interface{}, error)

	// DequeueWithTimeout returns an empty slice when nothing arrives in time
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue holds items whose processing kept failing
type DeadLetterQueue interface {
	Add(ctx context.Context, item interface{}, err error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// DeadLetterItem represents an item in the dead letter queue
type DeadLetterItem struct {
	ID        string
	Item      interface{}
	Error     string
	Timestamp time.Time
	Retries   int
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend
	UseRedis bool

	// RedisURL is a redis:// URL, used when UseRedis is true
	RedisURL string

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    50,
		BatchTimeout: 2 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		UseRedis:     false,
		QueueName:    queueName,
	}
}

// New builds the backend selected by config together with its dead letter
// queue.
func New(config *Config) (Queue, DeadLetterQueue, error) {
	if config == nil || !config.UseRedis {
		return NewMemoryQueue(config), NewMemoryDeadLetterQueue(), nil
	}

	q, err := NewRedisQueue(config)
	if err != nil {
		return nil, nil, err
	}
	dlq := NewRedisDeadLetterQueueWithClient(q.client, config)
	return q, dlq, nil
}
