package credentials

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// tokenRefreshBuffer is the time before token expiration to trigger a refresh.
const tokenRefreshBuffer = 5 * time.Minute

// Scopes requested for Google generative API access.
var Scopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/generative-language",
}

// GoogleCredential implements OAuth2 bearer-token authentication.
type GoogleCredential struct {
	tokenSource oauth2.TokenSource
	mu          sync.RWMutex
	cachedToken *oauth2.Token
}

// NewGoogleCredential uses Application Default Credentials. This covers
// workload identity, GOOGLE_APPLICATION_CREDENTIALS and gcloud auth.
func NewGoogleCredential(ctx context.Context) (*GoogleCredential, error) {
	tokenSource, err := google.DefaultTokenSource(ctx, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}
	return &GoogleCredential{tokenSource: tokenSource}, nil
}

// NewGoogleCredentialWithServiceAccount reads a service-account key file.
func NewGoogleCredentialWithServiceAccount(ctx context.Context, keyFile string) (*GoogleCredential, error) {
	data, err := readCredentialFile(keyFile, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w", err)
	}

	config, err := google.JWTConfigFromJSON([]byte(data), Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	return &GoogleCredential{tokenSource: config.TokenSource(ctx)}, nil
}

// NewGoogleCredentialFromTokenSource wraps an existing token source.
func NewGoogleCredentialFromTokenSource(ts oauth2.TokenSource) *GoogleCredential {
	return &GoogleCredential{tokenSource: ts}
}

// Apply adds the OAuth2 token to the request.
func (c *GoogleCredential) Apply(ctx context.Context, req *http.Request) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get google token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

// Type returns "google".
func (c *GoogleCredential) Type() string {
	return "google"
}

// getToken retrieves the current OAuth2 token, refreshing if necessary.
func (c *GoogleCredential) getToken(_ context.Context) (*oauth2.Token, error) {
	c.mu.RLock()
	if c.cachedToken != nil && c.cachedToken.Valid() {
		token := c.cachedToken
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.cachedToken != nil && c.cachedToken.Valid() {
		return c.cachedToken, nil
	}

	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, err
	}

	if token.Expiry.After(time.Now().Add(tokenRefreshBuffer)) {
		c.cachedToken = token
	}
	return token, nil
}
