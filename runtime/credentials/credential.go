// Package credentials resolves how requests to Google's generative APIs
// are authenticated: a Gemini API key or an OAuth2 token from Google
// application default credentials or a service-account key file.
package credentials

import (
	"context"
	"net/http"
)

// Credential applies authentication to outgoing requests.
type Credential interface {
	// Apply adds authentication headers to the request.
	Apply(ctx context.Context, req *http.Request) error

	// Type returns the credential type identifier ("api_key", "google", "none").
	Type() string
}

// Header returns the headers cred would add to a request. Websocket dials
// need headers rather than a request.
func Header(ctx context.Context, cred Credential) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost", http.NoBody)
	if err != nil {
		return nil, err
	}
	if err := cred.Apply(ctx, req); err != nil {
		return nil, err
	}
	return req.Header, nil
}

// GeminiKeyHeader is the header carrying a Gemini API key.
const GeminiKeyHeader = "x-goog-api-key"

// APIKeyCredential implements header-based API key authentication.
type APIKeyCredential struct {
	apiKey     string
	headerName string
	prefix     string
}

// APIKeyOption configures an APIKeyCredential.
type APIKeyOption func(*APIKeyCredential)

// WithHeaderName sets the header name for the API key.
func WithHeaderName(name string) APIKeyOption {
	return func(c *APIKeyCredential) {
		c.headerName = name
	}
}

// WithBearerPrefix sends the key as "Authorization: Bearer <key>".
func WithBearerPrefix() APIKeyOption {
	return func(c *APIKeyCredential) {
		c.headerName = "Authorization"
		c.prefix = "Bearer "
	}
}

// NewAPIKeyCredential creates an API key credential. By default the key is
// sent in the x-goog-api-key header.
func NewAPIKeyCredential(apiKey string, opts ...APIKeyOption) *APIKeyCredential {
	c := &APIKeyCredential{
		apiKey:     apiKey,
		headerName: GeminiKeyHeader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply adds the API key to the request header.
func (c *APIKeyCredential) Apply(_ context.Context, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set(c.headerName, c.prefix+c.apiKey)
	}
	return nil
}

// Type returns "api_key".
func (c *APIKeyCredential) Type() string {
	return "api_key"
}

// APIKey returns the raw API key value.
func (c *APIKeyCredential) APIKey() string {
	return c.apiKey
}

// NoOpCredential is a credential that does nothing. Used against local
// test servers.
type NoOpCredential struct{}

// Apply does nothing.
func (c *NoOpCredential) Apply(_ context.Context, _ *http.Request) error {
	return nil
}

// Type returns "none".
func (c *NoOpCredential) Type() string {
	return "none"
}
