package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDelivery(transport *fakeTransport) *Delivery {
	return NewDelivery(transport, DeliveryConfig{
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
		SendTimeout: time.Second,
		DeleteDelay: 10 * time.Millisecond,
	})
}

func TestSafeSendRetriesTransientErrors(t *testing.T) {
	transport := newFakeTransport()
	transport.sendErrs = []error{statusError(502), context.DeadlineExceeded}
	d := newTestDelivery(transport)

	id, err := d.SafeSend(context.Background(), Outgoing{ChatID: 1, Text: "hi"})
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, 3, transport.sendCalls)
}

func TestSafeSendGivesUp(t *testing.T) {
	transport := newFakeTransport()
	transport.sendErrs = []error{statusError(429), statusError(503), statusError(500), nil}
	d := newTestDelivery(transport)

	_, err := d.SafeSend(context.Background(), Outgoing{ChatID: 1, Text: "hi"})

	var terr *TransientDeliveryError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 3, terr.Attempts)
	assert.Equal(t, 3, transport.sendCalls)
	assert.Empty(t, transport.sent)
}

func TestSafeSendPermanentErrorNotRetried(t *testing.T) {
	transport := newFakeTransport()
	transport.sendErrs = []error{statusError(400)}
	d := newTestDelivery(transport)

	_, err := d.SafeSend(context.Background(), Outgoing{ChatID: 1, Text: "hi"})
	require.Error(t, err)

	var terr *TransientDeliveryError
	assert.False(t, errors.As(err, &terr))
	assert.Equal(t, 1, transport.sendCalls)
}

func TestScheduleDelete(t *testing.T) {
	transport := newFakeTransport()
	d := newTestDelivery(transport)

	d.ScheduleDelete(1, 55)
	d.ScheduleDelete(1, 0)

	assert.Eventually(t, func() bool {
		return len(transport.deletedIDs()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{55}, transport.deletedIDs())
	require.NoError(t, d.Flush(context.Background()))
}

func TestFlushDropsUnfiredDeletes(t *testing.T) {
	transport := newFakeTransport()
	d := NewDelivery(transport, DeliveryConfig{DeleteDelay: time.Hour})

	d.ScheduleDelete(1, 55)
	require.NoError(t, d.Flush(context.Background()))
	assert.Empty(t, transport.deletedIDs())

	d.ScheduleDelete(1, 56)
	assert.Empty(t, d.timers, "no scheduling after flush")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	text := strings.Repeat("ж", 25)
	chunks := SplitMessage(text, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 10)
	}

	chunks = SplitMessage("aaaaaaa\nbbbbbbbbbb", 10)
	assert.Equal(t, []string{"aaaaaaa\n", "bbbbbbbbbb"}, chunks)
}

func TestMaskEndpoint(t *testing.T) {
	assert.Equal(t, "https://api.example.com/***", maskEndpoint("https://api.example.com/v1/chat/completions"))
	assert.Equal(t, "http://host:8080", maskEndpoint("http://host:8080"))
	assert.Equal(t, "***", maskEndpoint("not a url"))
}
