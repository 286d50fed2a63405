package models

import "time"

// UserCredential is a per-(user, global model) key override.
type UserCredential struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	ModelID         int64     `db:"model_id"`
	EncryptedAPIKey string    `db:"encrypted_api_key"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
