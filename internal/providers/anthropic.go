package providers

import (
	"context"
	"net/http"
	"strings"
)

const (
	anthropicDefaultURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
)

// AnthropicProvider speaks the Anthropic messages API
type AnthropicProvider struct {
	client *http.Client
	url    string
}

// NewAnthropicProvider creates the Anthropic adapter. An empty url selects
// the public API.
func NewAnthropicProvider(client *http.Client, url string) *AnthropicProvider {
	if url == "" {
		url = anthropicDefaultURL
	}
	return &AnthropicProvider{client: client, url: url}
}

// Type returns the provider type
func (p *AnthropicProvider) Type() string {
	return ProviderAnthropic
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Chat hoists system messages, joined in order, into the top-level field and sends the
// remaining turns unchanged
func (p *AnthropicProvider) Chat(ctx context.Context, cfg Config, messages []Message) (string, error) {
	req := anthropicRequest{
		Model:     cfg.ModelName,
		MaxTokens: nativeMaxTokens,
		Messages:  make([]Message, 0, len(messages)),
	}
	var system []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, m)
	}
	req.System = strings.Join(system, "\n\n")

	auth := NewSimpleAPIKeyAuth(cfg.APIKey, "x-api-key", "")
	headers := map[string]string{"anthropic-version": anthropicVersion}

	resp, err := postJSON(ctx, p.client, p.Type(), p.url, auth, headers, req)
	if err != nil {
		return "", err
	}

	var out anthropicResponse
	if err := resp.decodeOK(p.Type(), &out); err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", missingField(p.Type(), "content", resp)
	}

	return out.Content[0].Text, nil
}
