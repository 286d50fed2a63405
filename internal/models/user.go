package models

import (
	"database/sql"
	"time"
)

// User is a chat participant, created on first contact and never hard-deleted.
type User struct {
	ID              int64          `db:"id"`
	Username        sql.NullString `db:"username"`
	FirstName       string         `db:"first_name"`
	IsBanned        bool           `db:"is_banned"`
	SelectedModelID sql.NullInt64  `db:"selected_model_id"` // global catalog id only
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// Handle returns the @-less username or a placeholder.
func (u *User) Handle() string {
	if u.Username.Valid && u.Username.String != "" {
		return u.Username.String
	}
	return "unknown"
}

// SelectedGlobal returns the durable selection as a ModelRef.
func (u *User) SelectedGlobal() (ModelRef, bool) {
	if !u.SelectedModelID.Valid {
		return ModelRef{}, false
	}
	return GlobalRef(u.SelectedModelID.Int64), true
}
