package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Path    string
	Headers http.Header
	Body    map[string]any
}

func newCaptureServer(t *testing.T, status int, contentType, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.Body)

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func requireProviderError(t *testing.T, err error, reason Reason) *ProviderError {
	t.Helper()
	require.Error(t, err)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr), "expected ProviderError, got %T", err)
	assert.Equal(t, reason, perr.Reason)
	return perr
}

var sampleMessages = []Message{
	{Role: RoleSystem, Content: "be brief"},
	{Role: RoleUser, Content: "hi"},
	{Role: RoleAssistant, Content: "hello"},
	{Role: RoleUser, Content: "how are you?"},
}

func TestGenericProviderSuccess(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK, "application/json; charset=utf-8",
		`{"choices":[{"message":{"role":"assistant","content":"fine, thanks"}}]}`)

	a := NewAdapter(AdapterOptions{})
	text, err := a.Call(context.Background(), Config{
		Provider:   "tbai",
		Endpoint:   srv.URL + "/v1/chat/completions",
		APIKey:     "sk-test-key",
		ModelName:  "gpt-4.1-nano",
		Headers:    map[string]string{"X-Extra": "1"},
		Parameters: map[string]any{"temperature": 0.2, "stream": false},
		Custom:     true,
	}, sampleMessages)

	require.NoError(t, err)
	assert.Equal(t, "fine, thanks", text)
	assert.Equal(t, "/v1/chat/completions", captured.Path)
	assert.Equal(t, "Bearer sk-test-key", captured.Headers.Get("Authorization"))
	assert.Equal(t, "1", captured.Headers.Get("X-Extra"))
	assert.Equal(t, "application/json", captured.Headers.Get("Content-Type"))
	assert.Equal(t, "gpt-4.1-nano", captured.Body["model"])
	assert.Equal(t, 0.2, captured.Body["temperature"])
	assert.Equal(t, false, captured.Body["stream"])
	assert.Len(t, captured.Body["messages"], 4)
}

func TestGenericProviderRejectsHTMLWithoutParsing(t *testing.T) {
	// A JSON-looking body must still be rejected when the content type says HTML.
	srv, _ := newCaptureServer(t, http.StatusOK, "text/html",
		`{"choices":[{"message":{"content":"should not be read"}}]}`)

	a := NewAdapter(AdapterOptions{})
	_, err := a.Call(context.Background(), Config{Endpoint: srv.URL, APIKey: "k", ModelName: "m", Custom: true}, sampleMessages)

	perr := requireProviderError(t, err, ReasonContentType)
	assert.Equal(t, http.StatusOK, perr.StatusCode)
	assert.Equal(t, "text/html", perr.ContentType)
	assert.Nil(t, perr.Err)
}

func TestGenericProviderFailureReasons(t *testing.T) {
	longBody := strings.Repeat("x", 500)

	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		reason      Reason
	}{
		{"unauthorized", http.StatusUnauthorized, "application/json", `{"error":"bad key"}`, ReasonStatus},
		{"server error with long body", http.StatusBadGateway, "text/plain", longBody, ReasonStatus},
		{"malformed json", http.StatusOK, "application/json", `{"choices":`, ReasonDecode},
		{"missing choices", http.StatusOK, "application/json", `{"id":"x"}`, ReasonMissingField},
		{"empty choices", http.StatusOK, "application/json", `{"choices":[]}`, ReasonMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newCaptureServer(t, tt.status, tt.contentType, tt.body)
			a := NewAdapter(AdapterOptions{})

			_, err := a.Call(context.Background(), Config{Endpoint: srv.URL, APIKey: "k", ModelName: "m", Custom: true}, sampleMessages)

			perr := requireProviderError(t, err, tt.reason)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.LessOrEqual(t, len(perr.Body), maxErrorBody)
		})
	}
}

func TestGenericProviderTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	a := NewAdapter(AdapterOptions{})
	_, err := a.Call(context.Background(), Config{Endpoint: url, APIKey: "k", ModelName: "m", Custom: true}, sampleMessages)

	requireProviderError(t, err, ReasonTransport)
}

func TestOpenAIProvider(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK, "application/json",
		`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"native answer"},"finish_reason":"stop"}]}`)

	a := NewAdapter(AdapterOptions{OpenAIBaseURL: srv.URL + "/v1"})
	text, err := a.Call(context.Background(), Config{Provider: "OpenAI", APIKey: "sk-native", ModelName: "gpt-4o"}, sampleMessages)

	require.NoError(t, err)
	assert.Equal(t, "native answer", text)
	assert.Equal(t, "/v1/chat/completions", captured.Path)
	assert.Equal(t, "Bearer sk-native", captured.Headers.Get("Authorization"))
	assert.Equal(t, float64(2000), captured.Body["max_tokens"])
	assert.Equal(t, 0.7, captured.Body["temperature"])
}

func TestOpenAIProviderStatusError(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusUnauthorized, "application/json",
		`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)

	a := NewAdapter(AdapterOptions{OpenAIBaseURL: srv.URL})
	_, err := a.Call(context.Background(), Config{Provider: "openai", APIKey: "bad", ModelName: "gpt-4o"}, sampleMessages)

	perr := requireProviderError(t, err, ReasonStatus)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Contains(t, perr.Body, "Incorrect API key")
}

func TestAnthropicProvider(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK, "application/json",
		`{"content":[{"type":"text","text":"claude says hi"}]}`)

	a := NewAdapter(AdapterOptions{AnthropicURL: srv.URL + "/v1/messages"})
	text, err := a.Call(context.Background(), Config{Provider: "anthropic", APIKey: "ak", ModelName: "claude-3-haiku"}, sampleMessages)

	require.NoError(t, err)
	assert.Equal(t, "claude says hi", text)
	assert.Equal(t, "ak", captured.Headers.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", captured.Headers.Get("anthropic-version"))
	assert.Empty(t, captured.Headers.Get("Authorization"))
	assert.Equal(t, "be brief", captured.Body["system"])
	assert.Equal(t, float64(2000), captured.Body["max_tokens"])

	msgs, ok := captured.Body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
}

func TestAnthropicProviderJoinsSystemMessages(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK, "application/json",
		`{"content":[{"type":"text","text":"ok"}]}`)

	messages := []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "answer in English"},
	}
	a := NewAdapter(AdapterOptions{AnthropicURL: srv.URL})
	_, err := a.Call(context.Background(), Config{Provider: "anthropic", APIKey: "ak", ModelName: "m"}, messages)

	require.NoError(t, err)
	assert.Equal(t, "be brief\n\nanswer in English", captured.Body["system"])
	msgs, ok := captured.Body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 1)
}

func TestAnthropicProviderMissingContent(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusOK, "application/json", `{"content":[]}`)

	a := NewAdapter(AdapterOptions{AnthropicURL: srv.URL})
	_, err := a.Call(context.Background(), Config{Provider: "anthropic", APIKey: "ak", ModelName: "m"}, sampleMessages)

	requireProviderError(t, err, ReasonMissingField)
}

func TestGoogleProvider(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK, "application/json",
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"gemini reply"}]}}]}`)

	a := NewAdapter(AdapterOptions{GoogleBaseURL: srv.URL + "/v1beta"})
	text, err := a.Call(context.Background(), Config{Provider: "Google", APIKey: "gk", ModelName: "gemini-pro"}, sampleMessages)

	require.NoError(t, err)
	assert.Equal(t, "gemini reply", text)
	assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", captured.Path)
	assert.Equal(t, "gk", captured.Headers.Get("x-goog-api-key"))

	contents, ok := captured.Body["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 3, "system message is dropped")
	second := contents[1].(map[string]any)
	assert.Equal(t, "model", second["role"])
	parts := second["parts"].([]any)
	assert.Equal(t, "hello", parts[0].(map[string]any)["text"])
}

func TestGoogleProviderMissingCandidates(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusOK, "application/json", `{"candidates":[]}`)

	a := NewAdapter(AdapterOptions{GoogleBaseURL: srv.URL})
	_, err := a.Call(context.Background(), Config{Provider: "google", APIKey: "gk", ModelName: "gemini-pro"}, sampleMessages)

	requireProviderError(t, err, ReasonMissingField)
}

func TestAdapterUnsupportedProvider(t *testing.T) {
	a := NewAdapter(AdapterOptions{})
	_, err := a.Call(context.Background(), Config{Provider: "mistral", APIKey: "k", ModelName: "m"}, sampleMessages)

	requireProviderError(t, err, ReasonUnsupported)
}

func TestAdapterValidate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv, captured := newCaptureServer(t, http.StatusOK, "application/json",
			`{"choices":[{"message":{"content":"ok"}}]}`)

		a := NewAdapter(AdapterOptions{})
		err := a.Validate(context.Background(), srv.URL, "sk-valid-key", "llama3")

		require.NoError(t, err)
		assert.Equal(t, float64(10), captured.Body["max_tokens"])
		assert.Equal(t, "llama3", captured.Body["model"])
		assert.Equal(t, "TelegramBot/1.0", captured.Headers.Get("User-Agent"))
		msgs := captured.Body["messages"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, validationPrompt, msgs[0].(map[string]any)["content"])
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv, _ := newCaptureServer(t, http.StatusUnauthorized, "application/json", `{"error":"nope"}`)

		a := NewAdapter(AdapterOptions{})
		err := a.Validate(context.Background(), srv.URL, "sk-bad-key", "llama3")

		perr := requireProviderError(t, err, ReasonStatus)
		assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	})
}

func TestTruncateBodyKeepsRunes(t *testing.T) {
	body := []byte(strings.Repeat("a", maxErrorBody-1) + "é")
	got := truncateBody(body)

	assert.Equal(t, maxErrorBody-1, len(got))
	assert.True(t, strings.HasPrefix(string(body), got))
}

func TestIsNative(t *testing.T) {
	assert.True(t, IsNative("OpenAI"))
	assert.True(t, IsNative("anthropic"))
	assert.True(t, IsNative("GOOGLE"))
	assert.False(t, IsNative("tbai"))
	assert.False(t, IsNative(""))
}
