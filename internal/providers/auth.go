package providers

import (
	"context"
	"fmt"
	"net/http"
)

// SimpleAPIKeyAuth puts an API key into a single request header
type SimpleAPIKeyAuth struct {
	apiKey     string
	headerName string // e.g. "Authorization" or "x-api-key"
	prefix     string // e.g. "Bearer "; empty for raw keys
}

// NewSimpleAPIKeyAuth creates a new simple API key authenticator
func NewSimpleAPIKeyAuth(apiKey, headerName, prefix string) *SimpleAPIKeyAuth {
	if headerName == "" {
		headerName = "Authorization"
	}

	return &SimpleAPIKeyAuth{
		apiKey:     apiKey,
		headerName: headerName,
		prefix:     prefix,
	}
}

// NewBearerAuth is the Authorization: Bearer form used by OpenAI-style APIs
func NewBearerAuth(apiKey string) *SimpleAPIKeyAuth {
	return NewSimpleAPIKeyAuth(apiKey, "Authorization", "Bearer ")
}

// Authenticate returns an auth context with the API key
func (a *SimpleAPIKeyAuth) Authenticate(ctx context.Context) (AuthContext, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	return &simpleAPIKeyAuthContext{
		value:      a.prefix + a.apiKey,
		headerName: a.headerName,
	}, nil
}

type simpleAPIKeyAuthContext struct {
	value      string
	headerName string
}

// ApplyToRequest adds the API key to the HTTP request
func (c *simpleAPIKeyAuthContext) ApplyToRequest(ctx context.Context, req any) error {
	httpReq, ok := req.(*http.Request)
	if !ok {
		return fmt.Errorf("expected *http.Request, got %T", req)
	}

	httpReq.Header.Set(c.headerName, c.value)
	return nil
}
