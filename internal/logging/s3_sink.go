package logging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anronharry/TG-bot/internal/queue"
	"github.com/anronharry/TG-bot/internal/utils"
)

const (
	enqueueTimeout = 100 * time.Millisecond
	writeTimeout   = 30 * time.Second
	pollInterval   = 200 * time.Millisecond
)

// S3SinkConfig configures an S3Sink
type S3SinkConfig struct {
	BufferSize    int           // records held in memory before Enqueue starts failing
	FlushSize     int           // records per object
	FlushInterval time.Duration // maximum age of a partial batch
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	S3Endpoint    string
	PodName       string
}

type batchWriter interface {
	WriteBatch(ctx context.Context, records []*TurnRecord) (string, error)
}

// S3Sink buffers turn records in memory and ships them to S3 as JSON Lines
// objects, either when FlushSize records are pending or every FlushInterval
type S3Sink struct {
	queue         *queue.MemoryQueue
	writer        batchWriter
	flushSize     int
	flushInterval time.Duration
	logger        *utils.Logger

	stopChan    chan struct{}
	stoppedChan chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewS3Sink creates the sink and starts its background flusher
func NewS3Sink(ctx context.Context, cfg S3SinkConfig) (*S3Sink, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	writer, err := NewS3Writer(ctx, S3WriterConfig{
		Bucket:   cfg.S3Bucket,
		Region:   cfg.S3Region,
		Prefix:   cfg.S3Prefix,
		PodName:  cfg.PodName,
		Endpoint: cfg.S3Endpoint,
	})
	if err != nil {
		return nil, err
	}

	return newS3Sink(cfg, writer), nil
}

func newS3Sink(cfg S3SinkConfig, writer batchWriter) *S3Sink {
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}
	if cfg.BufferSize < cfg.FlushSize {
		cfg.BufferSize = cfg.FlushSize * 10
	}

	// The memory queue holds BatchSize*10 items.
	queueConfig := queue.DefaultConfig("turn-log")
	queueConfig.BatchSize = (cfg.BufferSize + 9) / 10
	queueConfig.BatchTimeout = cfg.FlushInterval

	s := &S3Sink{
		queue:         queue.NewMemoryQueue(queueConfig),
		writer:        writer,
		flushSize:     cfg.FlushSize,
		flushInterval: cfg.FlushInterval,
		logger:        utils.NewLogger("s3-sink"),
		stopChan:      make(chan struct{}),
		stoppedChan:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run(context.Background())
	return s
}

// Enqueue buffers rec. It fails when the buffer stays full or the sink
// has been shut down.
func (s *S3Sink) Enqueue(rec *TurnRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	if err := s.queue.Enqueue(ctx, rec); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrBufferFull
		}
		return err
	}
	return nil
}

func (s *S3Sink) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.stoppedChan)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	poll := pollInterval
	if s.flushInterval < poll {
		poll = s.flushInterval
	}

	var batch []*TurnRecord
	for {
		select {
		case <-s.stopChan:
			batch = append(batch, s.drain(ctx)...)
			s.flush(ctx, batch)
			_ = s.queue.Close()
			return
		case <-ticker.C:
			s.flush(ctx, batch)
			batch = nil
			continue
		default:
		}

		items, err := s.queue.DequeueWithTimeout(ctx, s.flushSize-len(batch), poll)
		if err != nil {
			s.logger.Error("Failed to read turn log buffer", "error", err)
			continue
		}
		batch = append(batch, toRecords(items)...)

		if len(batch) >= s.flushSize {
			s.flush(ctx, batch)
			batch = nil
		}
	}
}

// drain empties the buffer without waiting for new records
func (s *S3Sink) drain(ctx context.Context) []*TurnRecord {
	var out []*TurnRecord
	for {
		items, err := s.queue.DequeueWithTimeout(ctx, s.flushSize, time.Millisecond)
		if err != nil || len(items) == 0 {
			return out
		}
		out = append(out, toRecords(items)...)
	}
}

func toRecords(items []interface{}) []*TurnRecord {
	out := make([]*TurnRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(*TurnRecord); ok {
			out = append(out, rec)
		}
	}
	return out
}

// flush writes records in chunks of at most flushSize
func (s *S3Sink) flush(ctx context.Context, records []*TurnRecord) {
	for len(records) > 0 {
		n := len(records)
		if n > s.flushSize {
			n = s.flushSize
		}

		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		if _, err := s.writer.WriteBatch(writeCtx, records[:n]); err != nil {
			s.logger.Error("Failed to ship turn records", "count", n, "error", err)
		}
		cancel()

		records = records[n:]
	}
}

// Shutdown flushes pending records and stops the background flusher
func (s *S3Sink) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })

	select {
	case <-s.stoppedChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
