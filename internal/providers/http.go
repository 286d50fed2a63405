package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBody caps how much of a provider response is read
const maxResponseBody = 4 << 20

// NewHTTPClient returns the client shared by the hand-written adapters
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

type jsonResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// postJSON sends payload and returns the raw response. Only transport
// failures are errors here; status handling belongs to the caller.
func postJSON(ctx context.Context, client *http.Client, provider, url string, auth Authenticator, headers map[string]string, payload any) (*jsonResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Reason: ReasonDecode, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: provider, Reason: ReasonTransport, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")

	if auth != nil {
		authCtx, err := auth.Authenticate(ctx)
		if err != nil {
			return nil, &ProviderError{Provider: provider, Reason: ReasonAuth, Err: err}
		}
		if err := authCtx.ApplyToRequest(ctx, httpReq); err != nil {
			return nil, &ProviderError{Provider: provider, Reason: ReasonAuth, Err: err}
		}
	}

	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &ProviderError{Provider: provider, Reason: ReasonTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return &jsonResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

// decodeOK turns a non-200 into a status error and otherwise decodes the
// body into out
func (r *jsonResponse) decodeOK(provider string, out any) error {
	if r.StatusCode != http.StatusOK {
		return &ProviderError{Provider: provider, Reason: ReasonStatus, StatusCode: r.StatusCode, Body: truncateBody(r.Body)}
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return &ProviderError{Provider: provider, Reason: ReasonDecode, StatusCode: r.StatusCode, Body: truncateBody(r.Body), Err: err}
	}
	return nil
}

func isJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "application/json")
}

func missingField(provider, field string, r *jsonResponse) error {
	return &ProviderError{
		Provider:   provider,
		Reason:     ReasonMissingField,
		StatusCode: r.StatusCode,
		Body:       truncateBody(r.Body),
		Err:        fmt.Errorf("response has no %s", field),
	}
}
