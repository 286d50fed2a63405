package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Chat roles stored in history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatHistory is one durable, append-only turn.
type ChatHistory struct {
	ID        int64         `db:"id" json:"id"`
	SessionID uuid.UUID     `db:"session_id" json:"session_id"`
	UserID    int64         `db:"user_id" json:"user_id"`
	GroupID   sql.NullInt64 `db:"group_id" json:"group_id"`
	Role      string        `db:"role" json:"role"`
	Content   string        `db:"content" json:"content"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// Exchange is a user turn and the assistant reply persisted as one unit.
type Exchange struct {
	SessionID     uuid.UUID `json:"session_id"`
	UserID        int64     `json:"user_id"`
	GroupID       *int64    `json:"group_id,omitempty"`
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	CreatedAt     time.Time `json:"created_at"`
}

// Rows expands the exchange into its two history rows. The assistant row
// is stamped one microsecond after the user row so ordering by timestamp
// is stable.
func (e *Exchange) Rows() []*ChatHistory {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var group sql.NullInt64
	if e.GroupID != nil {
		group = sql.NullInt64{Int64: *e.GroupID, Valid: true}
	}
	return []*ChatHistory{
		{SessionID: e.SessionID, UserID: e.UserID, GroupID: group, Role: RoleUser, Content: e.UserText, CreatedAt: created},
		{SessionID: e.SessionID, UserID: e.UserID, GroupID: group, Role: RoleAssistant, Content: e.AssistantText, CreatedAt: created.Add(time.Microsecond)},
	}
}
