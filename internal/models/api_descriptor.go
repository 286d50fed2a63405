package models

import "database/sql"

// APIDescriptor is a statically configured backend loaded from the catalog
// seed file or CUSTOM_API_CONFIGS. The key is held in plaintext in memory
// only.
type APIDescriptor struct {
	Name       string            `json:"name" toml:"name"`
	Provider   string            `json:"provider" toml:"provider"`
	ModelName  string            `json:"model_name" toml:"model_name"`
	Endpoint   string            `json:"api_base_url" toml:"endpoint"`
	APIKey     string            `json:"api_key" toml:"-"`
	Headers    map[string]string `json:"headers" toml:"headers"`
	Parameters map[string]any    `json:"parameters" toml:"parameters"`
	Active     *bool             `json:"is_active" toml:"active"`
}

// IsActive defaults to true when the flag was omitted.
func (d *APIDescriptor) IsActive() bool {
	return d.Active == nil || *d.Active
}

// CatalogName is the unique catalog key for the descriptor. It falls back
// to the upstream model name when no explicit name was configured.
func (d *APIDescriptor) CatalogName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ModelName
}

// CatalogEntry converts the descriptor into a catalog row. encryptedKey
// may be empty, in which case the row carries no direct credentials.
func (d *APIDescriptor) CatalogEntry(encryptedKey string) *CatalogModel {
	entry := &CatalogModel{
		ModelName: d.CatalogName(),
		Provider:  d.Provider,
		IsActive:  d.IsActive(),
	}
	if d.Endpoint != "" {
		entry.Endpoint = sql.NullString{String: d.Endpoint, Valid: true}
	}
	if encryptedKey != "" {
		entry.EncryptedAPIKey = sql.NullString{String: encryptedKey, Valid: true}
	}
	if len(d.Headers) > 0 {
		entry.Headers = make(JSONB, len(d.Headers))
		for k, v := range d.Headers {
			entry.Headers[k] = v
		}
	}
	if len(d.Parameters) > 0 {
		entry.Parameters = JSONB(d.Parameters).Merge(nil)
	}
	return entry
}
