// Package telegram connects the bot to the Telegram Bot API: outbound
// calls paced below the platform limits and a long-polling update loop.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/anronharry/TG-bot/internal/bot"
	"github.com/anronharry/TG-bot/internal/utils"
)

// DefaultMessagesPerSecond stays under the platform's global send limit
const DefaultMessagesPerSecond = 25

// botAPI is the subset of *tgbotapi.BotAPI used here
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// APIError is a failed Bot API call
type APIError struct {
	Code       int
	Message    string
	RetryAfter int // seconds, set on 429
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram api error %d: %s (retry after %ds)", e.Code, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Message)
}

// StatusCode makes APIError classifiable by utils.IsRetryableSendError
func (e *APIError) StatusCode() int {
	return e.Code
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, &APIError{
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RetryAfter: apiErr.RetryAfter,
		})
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Config configures the transport
type Config struct {
	Token             string
	MessagesPerSecond int
	RequestTimeout    time.Duration
	Debug             bool
}

// Transport implements bot.Transport over the Bot API
type Transport struct {
	api     botAPI
	limiter *rate.Limiter
	logger  *utils.Logger
	self    string
}

// NewTransport authenticates against the Bot API
func NewTransport(cfg Config) (*Transport, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	// long polls hold the connection for up to pollTimeout
	client := &http.Client{Timeout: cfg.RequestTimeout + pollTimeout*time.Second}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug

	t := newTransport(api, cfg.MessagesPerSecond)
	t.self = api.Self.UserName
	t.logger.Info("Authorized", "bot", api.Self.UserName)
	return t, nil
}

func newTransport(api botAPI, perSecond int) *Transport {
	if perSecond <= 0 {
		perSecond = DefaultMessagesPerSecond
	}
	return &Transport{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  utils.NewLogger("telegram"),
	}
}

// Username returns the bot's own handle
func (t *Transport) Username() string {
	return t.self
}

// Send delivers msg and returns the new message id
func (t *Transport) Send(ctx context.Context, msg bot.Outgoing) (int, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	cfg.ParseMode = msg.ParseMode
	switch {
	case len(msg.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(msg.Keyboard))
		for _, row := range msg.Keyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.OneTimeKeyboard = true
		cfg.ReplyMarkup = keyboard
	case msg.RemoveKeyboard:
		cfg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}

	sent, err := t.api.Send(cfg)
	if err != nil {
		return 0, wrapError("send message", err)
	}
	return sent.MessageID, nil
}

// Delete removes a message
func (t *Transport) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return wrapError("delete message", err)
}

// SendTyping shows the typing indicator
func (t *Transport) SendTyping(ctx context.Context, chatID int64) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := t.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return wrapError("send chat action", err)
}

// IsChatAdmin reports whether userID is an administrator or the creator of chatID
func (t *Transport) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	member, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return false, wrapError("get chat member", err)
	}
	return member.IsAdministrator() || member.IsCreator(), nil
}
