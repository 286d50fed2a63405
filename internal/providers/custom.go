package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// GenericProvider speaks the OpenAI-compatible wire format against an
// arbitrary endpoint. It backs catalog entries with their own endpoint and
// every personal model.
type GenericProvider struct {
	client *http.Client
}

// NewGenericProvider creates the generic adapter
func NewGenericProvider(client *http.Client) *GenericProvider {
	return &GenericProvider{client: client}
}

// Type returns the provider type
func (p *GenericProvider) Type() string {
	return "custom"
}

type genericResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat posts {model, messages, ...parameters} to cfg.Endpoint. Success
// needs HTTP 200 and a JSON content type.
func (p *GenericProvider) Chat(ctx context.Context, cfg Config, messages []Message) (string, error) {
	name := cfg.Provider
	if name == "" {
		name = p.Type()
	}
	if cfg.Endpoint == "" {
		return "", &ProviderError{Provider: name, Reason: ReasonTransport, Err: errors.New("endpoint is required")}
	}

	payload := make(map[string]any, len(cfg.Parameters)+2)
	for k, v := range cfg.Parameters {
		payload[k] = v
	}
	payload["model"] = cfg.ModelName
	payload["messages"] = messages

	resp, err := postJSON(ctx, p.client, name, cfg.Endpoint, NewBearerAuth(cfg.APIKey), cfg.Headers, payload)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: name, Reason: ReasonStatus, StatusCode: resp.StatusCode, Body: truncateBody(resp.Body)}
	}
	if !isJSONContentType(resp.ContentType) {
		return "", &ProviderError{
			Provider:    name,
			Reason:      ReasonContentType,
			StatusCode:  resp.StatusCode,
			ContentType: resp.ContentType,
			Body:        truncateBody(resp.Body),
		}
	}

	var out genericResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", &ProviderError{Provider: name, Reason: ReasonDecode, StatusCode: resp.StatusCode, Body: truncateBody(resp.Body), Err: err}
	}
	if len(out.Choices) == 0 {
		return "", missingField(name, "choices", resp)
	}

	return out.Choices[0].Message.Content, nil
}
