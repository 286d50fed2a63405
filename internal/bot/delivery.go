package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anronharry/TG-bot/internal/utils"
)

// MaxMessageLength is the longest text the platform accepts
const MaxMessageLength = 4096

// TransientDeliveryError is returned when a message could not be
// delivered within the retry budget
type TransientDeliveryError struct {
	ChatID   int64
	Attempts int
	Err      error
}

func (e *TransientDeliveryError) Error() string {
	return fmt.Sprintf("delivery to chat %d failed after %d attempts: %v", e.ChatID, e.Attempts, e.Err)
}

func (e *TransientDeliveryError) Unwrap() error {
	return e.Err
}

// DeliveryConfig tunes outbound delivery
type DeliveryConfig struct {
	MaxRetries  int           // attempts per message
	RetryDelay  time.Duration // pause between attempts
	SendTimeout time.Duration // per attempt
	DeleteDelay time.Duration // ScheduleDelete delay
}

// DefaultDeliveryConfig returns the stock delivery settings
func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		MaxRetries:  3,
		RetryDelay:  time.Second,
		SendTimeout: 30 * time.Second,
		DeleteDelay: 60 * time.Second,
	}
}

// Delivery wraps a transport with retries and deferred deletes
type Delivery struct {
	transport Transport
	config    DeliveryConfig
	logger    *utils.Logger

	mu      sync.Mutex
	pending sync.WaitGroup
	timers  map[*time.Timer]struct{}
	closed  bool
}

// NewDelivery creates a delivery helper
func NewDelivery(transport Transport, config DeliveryConfig) *Delivery {
	defaults := DefaultDeliveryConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}
	if config.DeleteDelay < 0 {
		config.DeleteDelay = 0
	}
	return &Delivery{
		transport: transport,
		config:    config,
		logger:    utils.NewLogger("delivery"),
		timers:    make(map[*time.Timer]struct{}),
	}
}

// SafeSend delivers msg, retrying transient transport failures. A
// permanent failure is returned as is; an exhausted retry budget yields a
// *TransientDeliveryError.
func (d *Delivery) SafeSend(ctx context.Context, msg Outgoing) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= d.config.MaxRetries; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
		id, err := d.transport.Send(sendCtx, msg)
		cancel()
		if err == nil {
			return id, nil
		}
		lastErr = err

		if !utils.IsRetryableSendError(err) {
			d.logger.Error("Message delivery failed", "chat_id", msg.ChatID, "error", err)
			return 0, err
		}
		if attempt == d.config.MaxRetries {
			break
		}

		d.logger.Warn("Message delivery failed, retrying",
			"chat_id", msg.ChatID,
			"attempt", attempt,
			"max_attempts", d.config.MaxRetries,
			"error", err)

		select {
		case <-ctx.Done():
			return 0, &TransientDeliveryError{ChatID: msg.ChatID, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(d.config.RetryDelay):
		}
	}

	d.logger.Error("Message delivery gave up", "chat_id", msg.ChatID, "attempts", d.config.MaxRetries, "error", lastErr)
	return 0, &TransientDeliveryError{ChatID: msg.ChatID, Attempts: d.config.MaxRetries, Err: lastErr}
}

// SendText delivers text split into platform-sized chunks and returns the
// id of the last chunk
func (d *Delivery) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	var id int
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		var err error
		id, err = d.SafeSend(ctx, Outgoing{ChatID: chatID, Text: chunk})
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}

// DeleteBestEffort removes a message and only logs failures
func (d *Delivery) DeleteBestEffort(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := d.transport.Delete(ctx, chatID, messageID); err != nil {
		d.logger.Debug("Message delete failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

// ScheduleDelete removes a message after the configured delay
func (d *Delivery) ScheduleDelete(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.pending.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(d.config.DeleteDelay, func() {
		d.mu.Lock()
		delete(d.timers, timer)
		d.mu.Unlock()
		d.runDelete(chatID, messageID)
	})
	d.timers[timer] = struct{}{}
}

func (d *Delivery) runDelete(chatID int64, messageID int) {
	defer d.pending.Done()
	ctx, cancel := context.WithTimeout(context.Background(), d.config.SendTimeout)
	defer cancel()
	d.DeleteBestEffort(ctx, chatID, messageID)
}

// Flush stops accepting scheduled deletes and waits for the pending ones.
// Deletes whose timer has not fired are dropped.
func (d *Delivery) Flush(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	for timer := range d.timers {
		if timer.Stop() {
			d.pending.Done()
		}
		delete(d.timers, timer)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SplitMessage cuts text into chunks of at most limit runes, preferring to
// break after a newline
func SplitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
