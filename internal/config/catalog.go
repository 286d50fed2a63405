package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/anronharry/TG-bot/internal/models"
)

// CatalogSeed is one [[model]] table of the catalog seed file. The key is
// never written in the file; APIKeyEnv names the variable that holds it.
type CatalogSeed struct {
	Name       string            `toml:"name"`
	Provider   string            `toml:"provider"`
	ModelName  string            `toml:"model_name"`
	Endpoint   string            `toml:"endpoint"`
	APIKeyEnv  string            `toml:"api_key_env"`
	Headers    map[string]string `toml:"headers"`
	Parameters map[string]any    `toml:"parameters"`
	Active     *bool             `toml:"active"`
}

type catalogFile struct {
	Models []CatalogSeed `toml:"model"`
}

// Descriptor resolves the seed into an in-memory descriptor, reading the
// key from the environment
func (s CatalogSeed) Descriptor() models.APIDescriptor {
	d := models.APIDescriptor{
		Name:       s.Name,
		Provider:   s.Provider,
		ModelName:  s.ModelName,
		Endpoint:   s.Endpoint,
		Headers:    s.Headers,
		Parameters: s.Parameters,
		Active:     s.Active,
	}
	if s.APIKeyEnv != "" {
		d.APIKey = os.Getenv(s.APIKeyEnv)
	}
	return d
}

func (s CatalogSeed) validate() error {
	if s.Name == "" && s.ModelName == "" {
		return fmt.Errorf("name or model_name is required")
	}
	if s.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	return nil
}

// DefaultCatalogSeeds is used when no catalog file is configured
func DefaultCatalogSeeds() []CatalogSeed {
	active := true
	return []CatalogSeed{
		{
			Name:      "gpt-4.1-nano",
			Provider:  "tbai",
			ModelName: "gpt-4.1-nano",
			Endpoint:  "https://tbai.xin/v1/chat/completions",
			APIKeyEnv: "TBAI_API_KEY",
			Headers: map[string]string{
				"Accept":     "application/json",
				"User-Agent": "TelegramBot/1.0",
			},
			Parameters: map[string]any{
				"temperature": models.DefaultTemperature,
				"max_tokens":  models.DefaultMaxTokens,
				"stream":      false,
			},
			Active: &active,
		},
	}
}

// LoadCatalogSeeds reads the TOML seed file at path, or returns the
// built-in seeds when path is empty
func LoadCatalogSeeds(path string) ([]CatalogSeed, error) {
	if path == "" {
		return DefaultCatalogSeeds(), nil
	}

	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	for i, seed := range file.Models {
		if err := seed.validate(); err != nil {
			return nil, fmt.Errorf("catalog file %s: model %d: %w", path, i+1, err)
		}
	}
	return file.Models, nil
}

// ParseCustomAPIConfigs decodes the CUSTOM_API_CONFIGS JSON list
func ParseCustomAPIConfigs(raw string) ([]models.APIDescriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var descriptors []models.APIDescriptor
	if err := json.Unmarshal([]byte(raw), &descriptors); err != nil {
		return nil, fmt.Errorf("invalid CUSTOM_API_CONFIGS: %w", err)
	}
	for i, d := range descriptors {
		if d.CatalogName() == "" || d.Provider == "" {
			return nil, fmt.Errorf("invalid CUSTOM_API_CONFIGS: entry %d needs a name and a provider", i+1)
		}
	}
	return descriptors, nil
}

// Descriptors merges the catalog seeds with CUSTOM_API_CONFIGS. A custom
// entry replaces a seed of the same name.
func (c *Config) Descriptors() ([]models.APIDescriptor, error) {
	seeds, err := LoadCatalogSeeds(c.CatalogFile)
	if err != nil {
		return nil, err
	}

	out := make([]models.APIDescriptor, 0, len(seeds)+len(c.CustomAPIConfigs))
	index := make(map[string]int, cap(out))
	add := func(d models.APIDescriptor) {
		if i, ok := index[d.CatalogName()]; ok {
			out[i] = d
			return
		}
		index[d.CatalogName()] = len(out)
		out = append(out, d)
	}
	for _, s := range seeds {
		add(s.Descriptor())
	}
	for _, d := range c.CustomAPIConfigs {
		add(d)
	}
	return out, nil
}
