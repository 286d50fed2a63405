package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/queue"
	"github.com/anronharry/TG-bot/internal/utils"
)

// HistoryWriter is the durable sink the worker drains into
type HistoryWriter interface {
	AppendExchange(ctx context.Context, exchange *models.Exchange) error
	AppendExchanges(ctx context.Context, exchanges []*models.Exchange) error
}

// HistoryQueueWorker persists queued exchanges off the reply path
type HistoryQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	writer      HistoryWriter
	config      *queue.Config
	logger      *utils.Logger
	sleep       func(time.Duration)
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewHistoryQueueWorker creates a new history queue worker
func NewHistoryQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, writer HistoryWriter, config *queue.Config) *HistoryQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("history")
	}

	return &HistoryQueueWorker{
		queue:       q,
		dlq:         dlq,
		writer:      writer,
		config:      config,
		logger:      utils.NewLogger("history-worker"),
		sleep:       time.Sleep,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *HistoryQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the worker and waits for the current batch to finish
func (w *HistoryQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// AppendExchange enqueues an exchange. It satisfies the same contract as
// HistoryRepository.AppendExchange so callers can swap the two.
func (w *HistoryQueueWorker) AppendExchange(ctx context.Context, exchange *models.Exchange) error {
	return w.queue.Enqueue(ctx, exchange)
}

func (w *HistoryQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("History worker stopping")
			w.drain()
			return
		case <-ctx.Done():
			w.logger.Info("History worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// drain flushes what is already queued, bounded by a short deadline
func (w *HistoryQueueWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		n, err := w.queue.Length(ctx)
		if err != nil || n == 0 {
			return
		}
		w.processBatch(ctx)
	}
}

func (w *HistoryQueueWorker) processBatch(ctx context.Context) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("Failed to dequeue exchanges", "error", err)
		w.sleep(1 * time.Second)
		return
	}

	if len(items) == 0 {
		return
	}

	exchanges := make([]*models.Exchange, 0, len(items))
	for _, item := range items {
		exchange, err := decodeExchange(item)
		if err != nil {
			w.logger.Error("Failed to decode queued exchange", "error", err)
			continue
		}
		exchanges = append(exchanges, exchange)
	}

	if len(exchanges) == 0 {
		return
	}

	if err := w.writer.AppendExchanges(ctx, exchanges); err != nil {
		w.logger.Warn("Batch insert failed, retrying individually", "count", len(exchanges), "error", err)
		for _, exchange := range exchanges {
			if err := w.processItem(ctx, exchange); err != nil {
				w.logger.Error("Failed to persist exchange", "session_id", exchange.SessionID, "error", err)
			}
		}
		return
	}

	w.logger.Debug("Persisted exchange batch", "count", len(exchanges))
}

// processItem retries one exchange with exponential backoff and parks it
// in the dead letter queue when retries run out
func (w *HistoryQueueWorker) processItem(ctx context.Context, exchange *models.Exchange) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying exchange", "attempt", attempt, "backoff", backoff)
			w.sleep(backoff)
		}

		if err := w.writer.AppendExchange(ctx, exchange); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, exchange, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Exchange moved to DLQ", "session_id", exchange.SessionID, "error", lastErr)
		}
	}

	return fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, lastErr)
}

func decodeExchange(item interface{}) (*models.Exchange, error) {
	var data []byte
	switch v := item.(type) {
	case *models.Exchange:
		return v, nil
	case models.Exchange:
		return &v, nil
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		var err error
		if data, err = json.Marshal(item); err != nil {
			return nil, fmt.Errorf("failed to marshal item: %w", err)
		}
	}

	var exchange models.Exchange
	if err := json.Unmarshal(data, &exchange); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exchange: %w", err)
	}
	return &exchange, nil
}

// GetQueueLength returns the current queue length
func (w *HistoryQueueWorker) GetQueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// GetDeadLetterItems returns items from the dead letter queue
func (w *HistoryQueueWorker) GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a parked exchange
func (w *HistoryQueueWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, dlItem.Item); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
