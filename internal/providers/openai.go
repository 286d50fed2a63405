package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIProvider speaks the native OpenAI chat completions API
type OpenAIProvider struct {
	client  *http.Client
	baseURL string
}

// NewOpenAIProvider creates the native OpenAI adapter. An empty baseURL
// selects the public API.
func NewOpenAIProvider(client *http.Client, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIProvider{client: client, baseURL: baseURL}
}

// Type returns the provider type
func (p *OpenAIProvider) Type() string {
	return ProviderOpenAI
}

// Chat sends a chat completion with the fixed native settings
func (p *OpenAIProvider) Chat(ctx context.Context, cfg Config, messages []Message) (string, error) {
	if cfg.APIKey == "" {
		return "", &ProviderError{Provider: p.Type(), Reason: ReasonAuth, Err: errors.New("API key is required")}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = p.baseURL
	clientCfg.HTTPClient = p.client
	client := openai.NewClientWithConfig(clientCfg)

	req := openai.ChatCompletionRequest{
		Model:       cfg.ModelName,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   nativeMaxTokens,
		Temperature: nativeTemperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: p.Type(), Reason: ReasonMissingField, StatusCode: http.StatusOK, Err: errors.New("response has no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   p.Type(),
			Reason:     ReasonStatus,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       truncateBody([]byte(apiErr.Message)),
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{
			Provider:   p.Type(),
			Reason:     ReasonStatus,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        reqErr.Err,
		}
	}

	return &ProviderError{Provider: p.Type(), Reason: ReasonTransport, Err: err}
}
