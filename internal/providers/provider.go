package providers

import (
	"context"
	"strings"
	"time"
)

// Chat roles understood by every adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTimeout bounds every outbound provider call end to end.
const DefaultTimeout = 30 * time.Second

// Fixed generation settings used by the native adapters.
const (
	nativeMaxTokens   = 2000
	nativeTemperature = 0.7
)

// Message is one normalized chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config is the routing information resolved for a single call.
type Config struct {
	Provider   string            // provider tag, e.g. "openai" or "custom-home"
	Endpoint   string            // full request URL for the generic adapter
	APIKey     string            // plaintext key, never logged
	ModelName  string            // upstream model identifier
	Headers    map[string]string // extra request headers
	Parameters map[string]any    // merged into the generic request body

	// Custom routes the call through the generic OpenAI-compatible adapter
	// using Endpoint and APIKey instead of a native provider.
	Custom bool
}

// Provider is implemented by each wire format.
type Provider interface {
	// Type returns the provider tag this adapter serves
	Type() string

	// Chat sends messages and returns the assistant text
	Chat(ctx context.Context, cfg Config, messages []Message) (string, error)
}

// Authenticator handles authentication for a provider request.
type Authenticator interface {
	Authenticate(ctx context.Context) (AuthContext, error)
}

// AuthContext holds authentication information for a request
type AuthContext interface {
	// ApplyToRequest applies authentication to an HTTP request
	ApplyToRequest(ctx context.Context, req any) error
}

// Native provider tags with a process-wide key fallback.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// IsNative reports whether provider names one of the built-in wire formats.
// The match is case-insensitive.
func IsNative(provider string) bool {
	switch strings.ToLower(provider) {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return true
	default:
		return false
	}
}
