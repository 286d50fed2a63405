package bot

import "context"

// Chat types reported by the transport
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
)

// Sender identifies who wrote a message
type Sender struct {
	ID        int64
	Username  string
	FirstName string
}

// Message is one inbound text message
type Message struct {
	ChatID    int64
	ChatType  string
	ChatTitle string
	MessageID int
	From      Sender
	Text      string
	// ReplyTo is the sender of the message being replied to, if any.
	ReplyTo *Sender
}

// IsGroup reports whether the message came from a group chat
func (m *Message) IsGroup() bool {
	return m.ChatType == ChatGroup || m.ChatType == ChatSupergroup
}

// Outgoing is a message to deliver
type Outgoing struct {
	ChatID    int64
	Text      string
	ParseMode string
	// Keyboard, when set, is shown as a one-time reply keyboard.
	Keyboard [][]string
	// RemoveKeyboard hides a previously shown reply keyboard.
	RemoveKeyboard bool
}

// Transport is the chat platform seen by the bot
type Transport interface {
	// Send delivers msg and returns the id of the created message.
	Send(ctx context.Context, msg Outgoing) (int, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
	SendTyping(ctx context.Context, chatID int64) error
	// IsChatAdmin reports whether userID administers chatID.
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}
