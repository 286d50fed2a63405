// Package bot implements the command surface over an abstract chat
// transport: commands, model selection by keyboard text, the custom API
// wizard and chat turns.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anronharry/TG-bot/internal/chat"
	"github.com/anronharry/TG-bot/internal/models"
	"github.com/anronharry/TG-bot/internal/ratelimit"
	"github.com/anronharry/TG-bot/internal/registry"
	"github.com/anronharry/TG-bot/internal/session"
	"github.com/anronharry/TG-bot/internal/users"
	"github.com/anronharry/TG-bot/internal/utils"
	"github.com/anronharry/TG-bot/internal/wizard"
)

// UserService bootstraps users and answers moderation questions
type UserService interface {
	Ensure(ctx context.Context, p users.Profile) (*models.User, error)
	IsBanned(ctx context.Context, userID int64) (bool, error)
	Ban(ctx context.Context, userID int64) (bool, error)
	Unban(ctx context.Context, userID int64) (bool, error)
	IsAdmin(userID int64) bool
}

// ModelRegistry lists and stores model selections
type ModelRegistry interface {
	List(ctx context.Context, userID int64) ([]registry.Option, error)
	ResolveByDisplayText(ctx context.Context, userID int64, text string) (*registry.Option, error)
	SetSelectedModel(ctx context.Context, userID int64, ref models.ModelRef) error
	CurrentModelName(ctx context.Context, userID int64) (string, error)
}

// SessionClearer forgets conversation state
type SessionClearer interface {
	Clear(ctx context.Context, userID int64, wipeHistory bool) session.ClearResult
}

// Generator answers chat turns
type Generator interface {
	Generate(ctx context.Context, turn chat.Turn) (*chat.Result, error)
}

// KeySetter stores a user's key for a catalog model
type KeySetter interface {
	SetUserKey(ctx context.Context, userID, catalogID int64, key string) error
}

// Wizard runs the custom API registration flow
type Wizard interface {
	Start(userID int64) wizard.Reply
	Cancel(userID int64) bool
	Active(userID int64) bool
	Handle(ctx context.Context, userID int64, text string) (wizard.Reply, bool)
}

// Validator checks an OpenAI-compatible endpoint
type Validator interface {
	Validate(ctx context.Context, endpoint, apiKey, modelName string) error
}

// CustomModelLister lists a user's personal models
type CustomModelLister interface {
	ListByUser(ctx context.Context, userID int64) ([]*models.UserCustomModel, error)
}

// TurnGuard rate limits chat turns
type TurnGuard interface {
	AllowTurn(ctx context.Context, userID int64) ratelimit.Decision
}

// Options wires the bot
type Options struct {
	Transport    Transport
	Delivery     DeliveryConfig
	Users        UserService
	Registry     ModelRegistry
	Sessions     SessionClearer
	Generator    Generator
	Keys         KeySetter
	Wizard       Wizard
	Validator    Validator
	CustomModels CustomModelLister
	Guard        TurnGuard
	// GroupID restricts group conversations to one chat when non-zero.
	GroupID int64
	// TypingTimeout bounds the typing indicator call.
	TypingTimeout time.Duration
}

type handlerFunc func(ctx context.Context, msg *Message, args []string)

// Bot dispatches inbound messages
type Bot struct {
	transport    Transport
	delivery     *Delivery
	users        UserService
	registry     ModelRegistry
	sessions     SessionClearer
	generator    Generator
	keys         KeySetter
	wizard       Wizard
	validator    Validator
	customModels CustomModelLister
	guard        TurnGuard
	groupID      int64
	typingTO     time.Duration
	commands     map[string]handlerFunc
	logger       *utils.Logger
}

// New creates a bot
func New(opts Options) *Bot {
	guard := opts.Guard
	if guard == nil {
		guard = ratelimit.NewGuard(nil, ratelimit.Limits{})
	}
	typingTO := opts.TypingTimeout
	if typingTO <= 0 {
		typingTO = 10 * time.Second
	}

	b := &Bot{
		transport:    opts.Transport,
		delivery:     NewDelivery(opts.Transport, opts.Delivery),
		users:        opts.Users,
		registry:     opts.Registry,
		sessions:     opts.Sessions,
		generator:    opts.Generator,
		keys:         opts.Keys,
		wizard:       opts.Wizard,
		validator:    opts.Validator,
		customModels: opts.CustomModels,
		guard:        guard,
		groupID:      opts.GroupID,
		typingTO:     typingTO,
		logger:       utils.NewLogger("bot"),
	}

	b.commands = map[string]handlerFunc{
		"start":     b.handleStart,
		"help":      b.handleHelp,
		"clear":     b.handleClear,
		"setmodel":  b.handleSetModel,
		"setkey":    b.handleSetKey,
		"customapi": b.handleCustomAPI,
		"cancel":    b.handleCancel,
		"myapis":    b.handleMyAPIs,
		"testapi":   b.handleTestAPI,
		"ban":       b.handleBan,
		"unban":     b.handleUnban,
		"adminhelp": b.handleAdminHelp,
	}
	return b
}

// Delivery exposes the delivery helper, mainly for shutdown
func (b *Bot) Delivery() *Delivery {
	return b.delivery
}

// HandleMessage processes one inbound message
func (b *Bot) HandleMessage(ctx context.Context, msg *Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if msg.IsGroup() && b.groupID != 0 && msg.ChatID != b.groupID {
		b.logger.Debug("Ignoring message from foreign group", "chat_id", msg.ChatID)
		return
	}

	b.logger.Info("Message received",
		"user_id", msg.From.ID,
		"username", msg.From.Username,
		"chat_id", msg.ChatID,
		"chat_type", msg.ChatType,
		"text", preview(text, 100))

	if _, err := b.users.Ensure(ctx, users.Profile{
		ID:        msg.From.ID,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
	}); err != nil {
		b.logger.Error("Failed to register user", "user_id", msg.From.ID, "error", err)
	}

	if name, args, ok := parseCommand(text); ok {
		if handler, known := b.commands[name]; known {
			handler(ctx, msg, args)
		} else {
			b.logger.Debug("Unknown command", "command", name, "user_id", msg.From.ID)
		}
		return
	}

	if b.wizard.Active(msg.From.ID) {
		if reply, ok := b.wizard.Handle(ctx, msg.From.ID, text); ok {
			b.reply(ctx, msg, reply.Text)
			return
		}
	}

	if b.trySelectModel(ctx, msg, text) {
		return
	}

	b.chatTurn(ctx, msg, text)
}

// parseCommand splits "/name@bot arg..." and ".ban arg..." forms
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	head := fields[0]

	switch {
	case strings.HasPrefix(head, "/"):
		name := strings.TrimPrefix(head, "/")
		if at := strings.IndexByte(name, '@'); at >= 0 {
			name = name[:at]
		}
		if name == "" {
			return "", nil, false
		}
		return strings.ToLower(name), fields[1:], true
	case head == ".ban" || head == ".unban":
		return strings.TrimPrefix(head, "."), fields[1:], true
	}
	return "", nil, false
}

func preview(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}

func (b *Bot) reply(ctx context.Context, msg *Message, text string) int {
	id, err := b.delivery.SafeSend(ctx, Outgoing{ChatID: msg.ChatID, Text: text})
	if err != nil {
		b.logger.Error("Failed to send reply", "chat_id", msg.ChatID, "user_id", msg.From.ID, "error", err)
	}
	return id
}

// replyEphemeral sends text and schedules it for deletion
func (b *Bot) replyEphemeral(ctx context.Context, out Outgoing) {
	id, err := b.delivery.SafeSend(ctx, out)
	if err != nil {
		b.logger.Error("Failed to send reply", "chat_id", out.ChatID, "error", err)
		return
	}
	b.delivery.ScheduleDelete(out.ChatID, id)
}

func (b *Bot) trySelectModel(ctx context.Context, msg *Message, text string) bool {
	opt, err := b.registry.ResolveByDisplayText(ctx, msg.From.ID, text)
	if err != nil {
		b.logger.Warn("Model lookup failed", "user_id", msg.From.ID, "error", err)
		return false
	}
	if opt == nil {
		return false
	}

	if err := b.registry.SetSelectedModel(ctx, msg.From.ID, opt.Ref); err != nil {
		b.logger.Error("Failed to store model selection", "user_id", msg.From.ID, "model", opt.Ref.String(), "error", err)
		b.reply(ctx, msg, msgSelectionFailed)
		return true
	}

	b.logger.Info("Model selected", "user_id", msg.From.ID, "model", opt.Ref.String(), "display", opt.Display)
	if _, err := b.delivery.SafeSend(ctx, Outgoing{
		ChatID:         msg.ChatID,
		Text:           fmt.Sprintf(msgModelSelected, opt.Display),
		RemoveKeyboard: true,
	}); err != nil {
		b.logger.Error("Failed to confirm model selection", "user_id", msg.From.ID, "error", err)
	}
	return true
}
