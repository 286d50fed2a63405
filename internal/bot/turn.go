package bot

import (
	"context"
	"errors"

	"github.com/anronharry/TG-bot/internal/chat"
	"github.com/anronharry/TG-bot/internal/credentials"
)

// chatTurn runs rate limit, ban and model checks and then one generation
func (b *Bot) chatTurn(ctx context.Context, msg *Message, text string) {
	userID := msg.From.ID

	if d := b.guard.AllowTurn(ctx, userID); !d.Allowed {
		b.reply(ctx, msg, msgRateLimited)
		return
	}

	banned, err := b.users.IsBanned(ctx, userID)
	if err != nil {
		b.logger.Warn("Ban lookup failed", "user_id", userID, "error", err)
	}
	if banned {
		b.logger.Info("Banned user attempted a chat turn", "user_id", userID, "username", msg.From.Username)
		b.reply(ctx, msg, msgBanned)
		return
	}

	current, err := b.registry.CurrentModelName(ctx, userID)
	if err != nil {
		b.logger.Warn("Failed to read current model", "user_id", userID, "error", err)
	}
	if current == "" {
		b.reply(ctx, msg, msgSelectModelFirst)
		return
	}

	typingCtx, cancel := context.WithTimeout(ctx, b.typingTO)
	if err := b.transport.SendTyping(typingCtx, msg.ChatID); err != nil {
		b.logger.Debug("Typing indicator failed", "chat_id", msg.ChatID, "error", err)
	}
	cancel()

	processingID, err := b.delivery.SafeSend(ctx, Outgoing{ChatID: msg.ChatID, Text: msgProcessing})
	if err != nil {
		b.logger.Warn("Failed to send processing message", "chat_id", msg.ChatID, "error", err)
	}

	turn := chat.Turn{
		UserID:  userID,
		ChatID:  msg.ChatID,
		Text:    text,
		IsAdmin: b.users.IsAdmin(userID),
	}
	if msg.IsGroup() {
		groupID := msg.ChatID
		turn.GroupID = &groupID
	}

	result, err := b.generator.Generate(ctx, turn)
	b.delivery.DeleteBestEffort(ctx, msg.ChatID, processingID)
	if err != nil {
		b.reply(ctx, msg, failureMessage(err))
		return
	}

	if _, err := b.delivery.SendText(ctx, msg.ChatID, result.Text); err != nil {
		b.logger.Error("Failed to deliver answer", "chat_id", msg.ChatID, "user_id", userID, "error", err)
	}
}

// failureMessage picks the user-facing text for a failed generation. Raw
// upstream details are never shown.
func failureMessage(err error) string {
	var rerr *credentials.ResolutionError
	if errors.As(err, &rerr) {
		if rerr.Reason == credentials.ReasonNotSelected {
			return msgSelectModelFirst
		}
		return msgModelUnavailable
	}
	var cerr *credentials.CredentialError
	if errors.As(err, &cerr) {
		return msgNoAPIKey
	}
	return msgAIError
}
