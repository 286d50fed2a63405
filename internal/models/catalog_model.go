package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Default call parameters applied to catalog entries that carry none.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// CatalogModel is a centrally configured backend ("global model").
type CatalogModel struct {
	ID              int64          `db:"id"`
	ModelName       string         `db:"model_name"` // unique display name
	Provider        string         `db:"api_provider"`
	Endpoint        sql.NullString `db:"api_endpoint"`
	EncryptedAPIKey sql.NullString `db:"encrypted_api_key"`
	Headers         JSONB          `db:"headers"`
	Parameters      JSONB          `db:"parameters"`
	IsActive        bool           `db:"is_active"`
	CreatedAt       time.Time      `db:"created_at"`
}

// DisplayName renders the catalog entry the way it appears in the
// selection keyboard. The same string is matched back on input.
func (m *CatalogModel) DisplayName() string {
	return fmt.Sprintf("%s (%s)", m.ModelName, m.Provider)
}

// HasDirectCredentials reports whether the entry carries both an endpoint
// and an encrypted key of its own.
func (m *CatalogModel) HasDirectCredentials() bool {
	return m.Endpoint.Valid && m.Endpoint.String != "" &&
		m.EncryptedAPIKey.Valid && m.EncryptedAPIKey.String != ""
}

// Ref returns the tagged reference for this entry.
func (m *CatalogModel) Ref() ModelRef {
	return GlobalRef(m.ID)
}

// DefaultParameters returns the call parameters used when an entry has none.
func DefaultParameters() JSONB {
	return JSONB{
		"temperature": DefaultTemperature,
		"max_tokens":  DefaultMaxTokens,
		"stream":      false,
	}
}
