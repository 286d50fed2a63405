package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anronharry/TG-bot/internal/utils"
)

// validationPrompt is the user message sent when probing a custom endpoint
const validationPrompt = "Hello, this is a test message."

// AdapterOptions configures NewAdapter. Zero values select the public
// upstream URLs and DefaultTimeout.
type AdapterOptions struct {
	Timeout       time.Duration
	HTTPClient    *http.Client
	OpenAIBaseURL string
	AnthropicURL  string
	GoogleBaseURL string
}

// Adapter routes a resolved Config to the matching wire format
type Adapter struct {
	providers map[string]Provider
	generic   Provider
	timeout   time.Duration
	logger    *utils.Logger
}

// NewAdapter builds an adapter with the native providers and the generic
// OpenAI-compatible provider registered
func NewAdapter(opts AdapterOptions) *Adapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = NewHTTPClient(timeout)
	}

	a := &Adapter{
		providers: make(map[string]Provider),
		generic:   NewGenericProvider(client),
		timeout:   timeout,
		logger:    utils.NewLogger("providers"),
	}
	a.Register(NewOpenAIProvider(client, opts.OpenAIBaseURL))
	a.Register(NewAnthropicProvider(client, opts.AnthropicURL))
	a.Register(NewGoogleProvider(client, opts.GoogleBaseURL))
	return a
}

// Register adds or replaces the provider serving p.Type()
func (a *Adapter) Register(p Provider) {
	a.providers[strings.ToLower(p.Type())] = p
}

// Call sends messages using cfg. Custom configs always use the generic
// provider; everything else is looked up by provider tag.
func (a *Adapter) Call(ctx context.Context, cfg Config, messages []Message) (string, error) {
	p, err := a.route(cfg)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	text, err := p.Chat(ctx, cfg, messages)
	if err != nil {
		a.logger.Warn("Provider call failed",
			"provider", cfg.Provider,
			"model", cfg.ModelName,
			"key", utils.Fingerprint(cfg.APIKey),
			"latency", time.Since(start),
			"error", err)
		return "", err
	}

	a.logger.Debug("Provider call finished",
		"provider", cfg.Provider,
		"model", cfg.ModelName,
		"latency", time.Since(start))
	return text, nil
}

func (a *Adapter) route(cfg Config) (Provider, error) {
	if cfg.Custom {
		return a.generic, nil
	}
	if p, ok := a.providers[strings.ToLower(cfg.Provider)]; ok {
		return p, nil
	}
	return nil, &ProviderError{
		Provider: cfg.Provider,
		Reason:   ReasonUnsupported,
		Err:      fmt.Errorf("no adapter for provider %q", cfg.Provider),
	}
}

// Validate checks an OpenAI-compatible endpoint with a tiny request. It
// returns nil only when the endpoint answered with a usable completion.
func (a *Adapter) Validate(ctx context.Context, endpoint, apiKey, modelName string) error {
	cfg := Config{
		Provider:  "custom",
		Endpoint:  endpoint,
		APIKey:    apiKey,
		ModelName: modelName,
		Headers:   DefaultCustomHeaders(),
		Parameters: map[string]any{
			"max_tokens":  10,
			"temperature": nativeTemperature,
		},
		Custom: true,
	}

	_, err := a.Call(ctx, cfg, []Message{{Role: RoleUser, Content: validationPrompt}})
	return err
}

// DefaultCustomHeaders is the header set sent to personal endpoints
func DefaultCustomHeaders() map[string]string {
	return map[string]string{
		"Accept":     "application/json",
		"User-Agent": "TelegramBot/1.0",
	}
}
