package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const googleDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleProvider speaks the Gemini generateContent API
type GoogleProvider struct {
	client  *http.Client
	baseURL string
}

// NewGoogleProvider creates the Google adapter. An empty baseURL selects
// the public API.
func NewGoogleProvider(client *http.Client, baseURL string) *GoogleProvider {
	if baseURL == "" {
		baseURL = googleDefaultBaseURL
	}
	return &GoogleProvider{client: client, baseURL: baseURL}
}

// Type returns the provider type
func (p *GoogleProvider) Type() string {
	return ProviderGoogle
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents         []googleContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

// googleRole maps chat roles onto Gemini roles, which call the assistant "model"
func googleRole(role string) string {
	if role == RoleAssistant {
		return "model"
	}
	return role
}

// Chat drops system messages and sends the rest as contents
func (p *GoogleProvider) Chat(ctx context.Context, cfg Config, messages []Message) (string, error) {
	var req googleRequest
	req.GenerationConfig.MaxOutputTokens = nativeMaxTokens
	req.GenerationConfig.Temperature = nativeTemperature
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		req.Contents = append(req.Contents, googleContent{
			Role:  googleRole(m.Role),
			Parts: []googlePart{{Text: m.Content}},
		})
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, url.PathEscape(cfg.ModelName))
	auth := NewSimpleAPIKeyAuth(cfg.APIKey, "x-goog-api-key", "")

	resp, err := postJSON(ctx, p.client, p.Type(), endpoint, auth, nil, req)
	if err != nil {
		return "", err
	}

	var out googleResponse
	if err := resp.decodeOK(p.Type(), &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", missingField(p.Type(), "candidates", resp)
	}

	return out.Candidates[0].Content.Parts[0].Text, nil
}
