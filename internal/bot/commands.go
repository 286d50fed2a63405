package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/anronharry/TG-bot/internal/credentials"
	"github.com/anronharry/TG-bot/internal/users"
	"github.com/anronharry/TG-bot/internal/utils"
)

func (b *Bot) handleStart(ctx context.Context, msg *Message, args []string) {
	name := msg.From.FirstName
	if name == "" {
		name = "there"
	}
	b.logger.Info("User started the bot", "user_id", msg.From.ID, "username", msg.From.Username)
	b.replyEphemeral(ctx, Outgoing{ChatID: msg.ChatID, Text: fmt.Sprintf(msgWelcome, name)})
}

func (b *Bot) handleHelp(ctx context.Context, msg *Message, args []string) {
	b.replyEphemeral(ctx, Outgoing{ChatID: msg.ChatID, Text: msgHelp})
}

func (b *Bot) handleClear(ctx context.Context, msg *Message, args []string) {
	result := b.sessions.Clear(ctx, msg.From.ID, true)
	text := msgHistoryCleared
	if result.Err != nil {
		text = msgClearIncomplete
	}
	b.replyEphemeral(ctx, Outgoing{ChatID: msg.ChatID, Text: text})
}

func (b *Bot) handleSetModel(ctx context.Context, msg *Message, args []string) {
	options, err := b.registry.List(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("Failed to list models", "user_id", msg.From.ID, "error", err)
		b.reply(ctx, msg, msgNoModels)
		return
	}
	if len(options) == 0 {
		b.reply(ctx, msg, msgNoModels)
		return
	}

	keyboard := make([][]string, 0, len(options)+1)
	separated := false
	for _, opt := range options {
		if opt.Personal != nil && !separated {
			keyboard = append(keyboard, []string{msgCustomSeparator})
			separated = true
		}
		keyboard = append(keyboard, []string{opt.Display})
	}

	current, err := b.registry.CurrentModelName(ctx, msg.From.ID)
	if err != nil {
		b.logger.Warn("Failed to read current model", "user_id", msg.From.ID, "error", err)
	}
	if current == "" {
		current = msgNoSelection
	}

	b.replyEphemeral(ctx, Outgoing{
		ChatID:   msg.ChatID,
		Text:     fmt.Sprintf(msgChooseModel, current),
		Keyboard: keyboard,
	})
}

func (b *Bot) handleSetKey(ctx context.Context, msg *Message, args []string) {
	if len(args) < 2 {
		b.reply(ctx, msg, msgSetKeyUsage)
		return
	}
	// the command carries a secret
	b.delivery.DeleteBestEffort(ctx, msg.ChatID, msg.MessageID)

	catalogID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || catalogID <= 0 {
		b.reply(ctx, msg, msgInvalidModel)
		return
	}

	if err := b.keys.SetUserKey(ctx, msg.From.ID, catalogID, args[1]); err != nil {
		var rerr *credentials.ResolutionError
		if errors.As(err, &rerr) && rerr.Reason == credentials.ReasonNotFound {
			b.reply(ctx, msg, msgInvalidModel)
			return
		}
		b.logger.Error("Failed to store API key", "user_id", msg.From.ID, "model_id", catalogID, "error", err)
		b.reply(ctx, msg, msgKeyFailed)
		return
	}

	b.reply(ctx, msg, fmt.Sprintf(msgKeySet, fmt.Sprintf("model #%d", catalogID)))
}

func (b *Bot) handleCustomAPI(ctx context.Context, msg *Message, args []string) {
	reply := b.wizard.Start(msg.From.ID)
	b.reply(ctx, msg, reply.Text)
}

func (b *Bot) handleCancel(ctx context.Context, msg *Message, args []string) {
	if !b.wizard.Cancel(msg.From.ID) {
		b.reply(ctx, msg, msgNothingCancel)
		return
	}
	b.reply(ctx, msg, msgCancelled)
}

func (b *Bot) handleMyAPIs(ctx context.Context, msg *Message, args []string) {
	list, err := b.customModels.ListByUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("Failed to list custom APIs", "user_id", msg.From.ID, "error", err)
		b.reply(ctx, msg, msgListFailed)
		return
	}
	if len(list) == 0 {
		b.reply(ctx, msg, msgNoCustomAPIs)
		return
	}

	var sb strings.Builder
	sb.WriteString(msgCustomAPIsHead)
	for i, m := range list {
		status := "✅ active"
		if !m.IsActive {
			status = "❌ inactive"
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, m.CustomName)
		fmt.Fprintf(&sb, "   • model: %s\n", m.ModelName)
		fmt.Fprintf(&sb, "   • endpoint: %s\n", maskEndpoint(m.Endpoint))
		fmt.Fprintf(&sb, "   • status: %s\n\n", status)
	}
	sb.WriteString(msgCustomAPIsFoot)
	b.reply(ctx, msg, sb.String())
}

// maskEndpoint keeps the scheme and host of an endpoint
func maskEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.Path == "" || u.Path == "/" {
		return u.Scheme + "://" + u.Host
	}
	return u.Scheme + "://" + u.Host + "/***"
}

func (b *Bot) handleTestAPI(ctx context.Context, msg *Message, args []string) {
	if len(args) < 3 {
		b.reply(ctx, msg, msgTestUsage)
		return
	}
	b.delivery.DeleteBestEffort(ctx, msg.ChatID, msg.MessageID)

	endpoint, apiKey, modelName := args[0], args[1], args[2]
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		b.reply(ctx, msg, msgBadEndpoint)
		return
	}

	b.reply(ctx, msg, fmt.Sprintf(msgTesting, maskEndpoint(endpoint), modelName))
	if err := b.validator.Validate(ctx, endpoint, apiKey, modelName); err != nil {
		b.logger.Warn("API test failed",
			"user_id", msg.From.ID,
			"endpoint", endpoint,
			"model", modelName,
			"key", utils.Fingerprint(apiKey),
			"error", err)
		b.reply(ctx, msg, msgTestFailed)
		return
	}
	b.reply(ctx, msg, msgTestPassed)
}

func (b *Bot) handleAdminHelp(ctx context.Context, msg *Message, args []string) {
	if !b.canModerate(ctx, msg) {
		b.reply(ctx, msg, msgNoPermission)
		return
	}
	b.replyEphemeral(ctx, Outgoing{ChatID: msg.ChatID, Text: msgAdminHelp})
}

func (b *Bot) handleBan(ctx context.Context, msg *Message, args []string) {
	b.moderate(ctx, msg, args, true)
}

func (b *Bot) handleUnban(ctx context.Context, msg *Message, args []string) {
	b.moderate(ctx, msg, args, false)
}

// canModerate allows configured admins anywhere and chat administrators
// inside their group
func (b *Bot) canModerate(ctx context.Context, msg *Message) bool {
	if b.users.IsAdmin(msg.From.ID) {
		return true
	}
	if !msg.IsGroup() {
		return false
	}
	ok, err := b.transport.IsChatAdmin(ctx, msg.ChatID, msg.From.ID)
	if err != nil {
		b.logger.Warn("Chat admin lookup failed", "chat_id", msg.ChatID, "user_id", msg.From.ID, "error", err)
		return false
	}
	return ok
}

func (b *Bot) moderate(ctx context.Context, msg *Message, args []string, ban bool) {
	action := "unban"
	if ban {
		action = "ban"
	}

	if !b.canModerate(ctx, msg) {
		b.reply(ctx, msg, msgNoPermission)
		return
	}

	var targetID int64
	targetName := "unknown"
	switch {
	case msg.ReplyTo != nil:
		targetID = msg.ReplyTo.ID
		if msg.ReplyTo.Username != "" {
			targetName = "@" + msg.ReplyTo.Username
		}
	case len(args) > 0:
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			b.reply(ctx, msg, msgInvalidUserID)
			return
		}
		targetID = id
	default:
		b.reply(ctx, msg, fmt.Sprintf(msgModUsage, action))
		return
	}

	if ban && b.isProtected(ctx, msg, targetID) {
		b.reply(ctx, msg, msgCannotBanAdmin)
		return
	}

	var found bool
	var err error
	if ban {
		found, err = b.users.Ban(ctx, targetID)
	} else {
		found, err = b.users.Unban(ctx, targetID)
	}
	switch {
	case errors.Is(err, users.ErrCannotBanAdmin):
		b.reply(ctx, msg, msgCannotBanAdmin)
		return
	case err != nil:
		b.logger.Error("Moderation failed", "action", action, "target_id", targetID, "error", err)
		b.reply(ctx, msg, msgModFailed)
		return
	case !found:
		b.reply(ctx, msg, fmt.Sprintf(msgUserNotFound, targetID))
		return
	}

	b.logger.Info("Moderation applied",
		"action", action,
		"moderator_id", msg.From.ID,
		"moderator", msg.From.Username,
		"target_id", targetID)
	if ban {
		b.reply(ctx, msg, fmt.Sprintf(msgUserBanned, targetName, targetID))
	} else {
		b.reply(ctx, msg, fmt.Sprintf(msgUserUnbanned, targetName, targetID))
	}
}

// isProtected reports whether target is an admin of the bot or of the chat
func (b *Bot) isProtected(ctx context.Context, msg *Message, targetID int64) bool {
	if b.users.IsAdmin(targetID) {
		return true
	}
	if !msg.IsGroup() {
		return false
	}
	ok, err := b.transport.IsChatAdmin(ctx, msg.ChatID, targetID)
	if err != nil {
		b.logger.Debug("Chat admin lookup failed", "chat_id", msg.ChatID, "user_id", targetID, "error", err)
		return false
	}
	return ok
}
