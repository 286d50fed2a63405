package models

import (
	"fmt"
	"time"
)

// UserCustomModel is a user-registered OpenAI-compatible endpoint ("personal model").
type UserCustomModel struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	CustomName      string    `db:"custom_name"`
	ModelName       string    `db:"model_name"`
	Provider        string    `db:"api_provider"`
	Endpoint        string    `db:"api_endpoint"`
	EncryptedAPIKey string    `db:"encrypted_api_key"`
	IsActive        bool      `db:"is_active"`
	CreatedAt       time.Time `db:"created_at"`
}

// DisplayName renders the personal model the way it appears in the
// selection keyboard.
func (m *UserCustomModel) DisplayName() string {
	return fmt.Sprintf("🔧 %s (%s)", m.CustomName, m.ModelName)
}

// Ref returns the tagged reference for this personal model.
func (m *UserCustomModel) Ref() ModelRef {
	return PersonalRef(m.ID)
}

// CustomProviderLabel is the provider label stored for a personal model.
func CustomProviderLabel(customName string) string {
	return "custom-" + customName
}
