package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/anronharry/TG-bot/internal/bot"
	"github.com/anronharry/TG-bot/internal/utils"
)

// pollTimeout is the long-poll wait in seconds
const pollTimeout = 60

// Handler consumes inbound messages
type Handler interface {
	HandleMessage(ctx context.Context, msg *bot.Message)
}

// PollerConfig tunes the update loop
type PollerConfig struct {
	Workers    int           // parallel handlers; messages of one chat stay ordered
	QueueSize  int           // buffered updates per worker
	RetryDelay time.Duration // pause after a failed poll
	// DropPending skips updates queued while the bot was offline.
	DropPending bool
}

// Poller long-polls the Bot API and fans updates out to workers. Updates
// from the same chat always land on the same worker.
type Poller struct {
	api     botAPI
	handler Handler
	config  PollerConfig
	logger  *utils.Logger
	queues  []chan *bot.Message
	wg      sync.WaitGroup
}

// NewPoller creates a poller bound to t
func NewPoller(t *Transport, handler Handler, config PollerConfig) *Poller {
	return newPoller(t.api, handler, config)
}

func newPoller(api botAPI, handler Handler, config PollerConfig) *Poller {
	if config.Workers <= 0 {
		config.Workers = 8
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 16
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 3 * time.Second
	}
	return &Poller{
		api:     api,
		handler: handler,
		config:  config,
		logger:  utils.NewLogger("poller"),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers
func (p *Poller) Run(ctx context.Context) {
	// handlers outlive the poll loop so a cancelled poll does not cut
	// a turn in half
	handlerCtx := context.WithoutCancel(ctx)

	p.queues = make([]chan *bot.Message, p.config.Workers)
	for i := range p.queues {
		p.queues[i] = make(chan *bot.Message, p.config.QueueSize)
		p.wg.Add(1)
		go p.work(handlerCtx, p.queues[i])
	}

	offset := 0
	if p.config.DropPending {
		offset = p.skipPending()
	}

	p.logger.Info("Polling started", "workers", p.config.Workers, "offset", offset)
	for ctx.Err() == nil {
		u := tgbotapi.NewUpdate(offset)
		u.Timeout = pollTimeout
		u.AllowedUpdates = []string{"message"}

		updates, err := p.poll(ctx, u)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			p.logger.Warn("Polling failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(p.config.RetryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if msg := convertMessage(update.Message); msg != nil {
				p.dispatch(ctx, msg)
			}
		}
	}

	p.logger.Info("Polling stopped, draining handlers")
	for _, q := range p.queues {
		close(q)
	}
	p.wg.Wait()
	p.logger.Info("Handlers drained")
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

// poll runs one long poll, giving up early when ctx is done. The
// abandoned request finishes in the background.
func (p *Poller) poll(ctx context.Context, u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	done := make(chan pollResult, 1)
	go func() {
		updates, err := p.api.GetUpdates(u)
		done <- pollResult{updates, err}
	}()

	select {
	case r := <-done:
		return r.updates, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// skipPending acknowledges everything queued and returns the next offset
func (p *Poller) skipPending() int {
	u := tgbotapi.NewUpdate(-1)
	u.Limit = 1
	updates, err := p.api.GetUpdates(u)
	if err != nil || len(updates) == 0 {
		return 0
	}
	return updates[len(updates)-1].UpdateID + 1
}

func (p *Poller) dispatch(ctx context.Context, msg *bot.Message) {
	idx := int(uint64(msg.ChatID) % uint64(len(p.queues)))
	select {
	case p.queues[idx] <- msg:
	case <-ctx.Done():
	}
}

func (p *Poller) work(ctx context.Context, queue <-chan *bot.Message) {
	defer p.wg.Done()
	for msg := range queue {
		p.handle(ctx, msg)
	}
}

func (p *Poller) handle(ctx context.Context, msg *bot.Message) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Handler panicked", "chat_id", msg.ChatID, "user_id", msg.From.ID, "panic", r)
		}
	}()
	p.handler.HandleMessage(ctx, msg)
}

// convertMessage maps a Bot API message onto the transport-neutral form.
// Messages without text or sender are dropped.
func convertMessage(m *tgbotapi.Message) *bot.Message {
	if m == nil || m.From == nil || m.Chat == nil || m.Text == "" {
		return nil
	}

	msg := &bot.Message{
		ChatID:    m.Chat.ID,
		ChatType:  m.Chat.Type,
		ChatTitle: m.Chat.Title,
		MessageID: m.MessageID,
		From: bot.Sender{
			ID:        m.From.ID,
			Username:  m.From.UserName,
			FirstName: m.From.FirstName,
		},
		Text: m.Text,
	}
	if r := m.ReplyToMessage; r != nil && r.From != nil {
		msg.ReplyTo = &bot.Sender{
			ID:        r.From.ID,
			Username:  r.From.UserName,
			FirstName: r.From.FirstName,
		}
	}
	return msg
}
