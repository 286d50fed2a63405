package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/queue"
)

type fakeHistoryWriter struct {
	mu          sync.Mutex
	saved       []*models.Exchange
	batchErr    error
	singleFails int
	singleCalls int
}

func (f *fakeHistoryWriter) AppendExchanges(ctx context.Context, exchanges []*models.Exchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return f.batchErr
	}
	f.saved = append(f.saved, exchanges...)
	return nil
}

func (f *fakeHistoryWriter) AppendExchange(ctx context.Context, exchange *models.Exchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singleCalls++
	if f.singleCalls <= f.singleFails {
		return errors.New("simulated database error")
	}
	f.saved = append(f.saved, exchange)
	return nil
}

func (f *fakeHistoryWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func newTestWorker(writer HistoryWriter) (*HistoryQueueWorker, *queue.MemoryQueue, *queue.MemoryDeadLetterQueue) {
	config := queue.DefaultConfig("history-test")
	config.BatchSize = 10
	config.BatchTimeout = 20 * time.Millisecond
	config.MaxRetries = 2
	config.RetryBackoff = time.Millisecond

	q := queue.NewMemoryQueue(config)
	dlq := queue.NewMemoryDeadLetterQueue()
	w := NewHistoryQueueWorker(q, dlq, writer, config)
	w.sleep = func(time.Duration) {}
	return w, q, dlq
}

func testExchange(userID int64) *models.Exchange {
	return &models.Exchange{
		SessionID:     uuid.New(),
		UserID:        userID,
		UserText:      "hello",
		AssistantText: "hi there",
		CreatedAt:     time.Now(),
	}
}

func TestHistoryQueueWorker_PersistsBatches(t *testing.T) {
	writer := &fakeHistoryWriter{}
	w, _, _ := newTestWorker(writer)

	ctx := context.Background()
	w.Start(ctx)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, w.AppendExchange(ctx, testExchange(i)))
	}

	require.Eventually(t, func() bool { return writer.count() == 5 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())
}

func TestHistoryQueueWorker_StopDrainsQueue(t *testing.T) {
	writer := &fakeHistoryWriter{}
	w, q, _ := newTestWorker(writer)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, testExchange(i)))
	}

	w.Start(ctx)
	require.NoError(t, w.Stop())
	assert.Equal(t, 3, writer.count())
}

func TestHistoryQueueWorker_RetriesIndividually(t *testing.T) {
	writer := &fakeHistoryWriter{batchErr: errors.New("tx aborted"), singleFails: 1}
	w, q, dlq := newTestWorker(writer)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testExchange(1)))
	w.processBatch(ctx)

	assert.Equal(t, 1, writer.count())
	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHistoryQueueWorker_DeadLettersAfterRetries(t *testing.T) {
	writer := &fakeHistoryWriter{batchErr: errors.New("tx aborted"), singleFails: 100}
	w, q, _ := newTestWorker(writer)
	ctx := context.Background()

	exchange := testExchange(9)
	require.NoError(t, q.Enqueue(ctx, exchange))
	w.processBatch(ctx)

	assert.Equal(t, 0, writer.count())
	assert.Equal(t, 3, writer.singleCalls, "initial attempt plus MaxRetries")

	items, err := w.GetDeadLetterItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	writer.singleFails = 0
	writer.batchErr = nil
	require.NoError(t, w.RetryDeadLetterItem(ctx, items[0].ID))

	n, err := w.GetQueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	w.processBatch(ctx)
	assert.Equal(t, 1, writer.count())

	assert.ErrorIs(t, w.RetryDeadLetterItem(ctx, "missing"), queue.ErrItemNotFound)
}

func TestDecodeExchange(t *testing.T) {
	original := testExchange(4)
	payload := []byte(`{"session_id":"` + original.SessionID.String() + `","user_id":4,"user_text":"hello","assistant_text":"hi there"}`)

	decoded, err := decodeExchange(payload)
	require.NoError(t, err)
	assert.Equal(t, original.SessionID, decoded.SessionID)
	assert.Equal(t, int64(4), decoded.UserID)

	_, err = decodeExchange([]byte("{"))
	assert.Error(t, err)
}
