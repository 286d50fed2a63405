package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIDescriptorCatalogEntry(t *testing.T) {
	inactive := false
	d := &APIDescriptor{
		Name:       "gpt-4.1-nano",
		Provider:   "tbai",
		ModelName:  "gpt-4.1-nano",
		Endpoint:   "https://tbai.xin/v1/chat/completions",
		Headers:    map[string]string{"Accept": "application/json"},
		Parameters: map[string]any{"temperature": 0.7},
	}

	entry := d.CatalogEntry("ciphertext")
	assert.Equal(t, "gpt-4.1-nano", entry.ModelName)
	assert.Equal(t, "gpt-4.1-nano (tbai)", entry.DisplayName())
	assert.True(t, entry.IsActive)
	assert.True(t, entry.HasDirectCredentials())
	assert.Equal(t, "application/json", entry.Headers["Accept"])
	assert.Equal(t, 0.7, entry.Parameters["temperature"])

	d.Active = &inactive
	entry = d.CatalogEntry("")
	assert.False(t, entry.IsActive)
	assert.False(t, entry.HasDirectCredentials())
}

func TestAPIDescriptorCatalogNameFallback(t *testing.T) {
	d := &APIDescriptor{ModelName: "llama3"}
	assert.Equal(t, "llama3", d.CatalogName())
}
