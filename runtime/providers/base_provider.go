// Package providers holds the shared HTTP plumbing for the request/response
// model APIs that tools call: credential application, traced transport,
// debug logging and mapping of error responses to ContextualError.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	pkgerrors "github.com/AltairaLabs/roboshen/pkg/errors"
	"github.com/AltairaLabs/roboshen/pkg/httputil"
	"github.com/AltairaLabs/roboshen/runtime/credentials"
	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// DefaultBaseURL is the Gemini API root shared by generateContent and Imagen.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const (
	maxErrorBody    = 512
	contentTypeJSON = "application/json"
)

// BaseProvider carries what every HTTP model client shares.
type BaseProvider struct {
	id         string
	client     *http.Client
	credential credentials.Credential
}

// NewBaseProvider builds a provider base. A nil client gets one with the
// given timeout (60s when zero); either way the transport is wrapped for
// tracing. A nil credential sends no authentication.
func NewBaseProvider(id string, cred credentials.Credential, client *http.Client, timeout time.Duration) BaseProvider {
	if client == nil {
		client = httputil.NewHTTPClient(id, timeout)
	} else {
		client = httputil.Instrument(id, client)
	}
	if cred == nil {
		cred = &credentials.NoOpCredential{}
	}
	return BaseProvider{id: id, client: client, credential: cred}
}

// ID returns the provider identifier used in logs and errors.
func (b *BaseProvider) ID() string {
	return b.id
}

// HTTPClient returns the traced client.
func (b *BaseProvider) HTTPClient() *http.Client {
	return b.client
}

// Close releases idle connections.
func (b *BaseProvider) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// apiErrorBody is the Google API error envelope.
type apiErrorBody struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// MakeJSONRequest POSTs request as JSON and returns the raw 200 body. A
// non-200 response becomes a ContextualError carrying the status code and
// the service's error message.
func (b *BaseProvider) MakeJSONRequest(ctx context.Context, url, operation string, request any) ([]byte, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, pkgerrors.New(b.id, operation, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.New(b.id, operation, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	if err := b.credential.Apply(ctx, req); err != nil {
		return nil, pkgerrors.New(b.id, operation, fmt.Errorf("failed to apply credentials: %w", err))
	}

	logger.APIRequest(ctx, b.id, http.MethodPost, url, body)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, pkgerrors.New(b.id, operation, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.New(b.id, operation, fmt.Errorf("failed to read response: %w", err)).
			WithStatusCode(resp.StatusCode)
	}

	logger.APIResponse(ctx, b.id, resp.StatusCode, time.Since(start), respBody)

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(b.id, operation, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func responseError(component, operation string, status int, body []byte) *pkgerrors.ContextualError {
	var envelope apiErrorBody
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		return pkgerrors.New(component, operation, fmt.Errorf("%s: %s", envelope.Error.Status, envelope.Error.Message)).
			WithStatusCode(status).
			WithDetails(map[string]any{"status": envelope.Error.Status})
	}
	return pkgerrors.New(component, operation, fmt.Errorf("API error: %s", truncate(body))).WithStatusCode(status)
}

func truncate(body []byte) string {
	if len(body) <= maxErrorBody {
		return string(body)
	}
	return string(body[:maxErrorBody]) + "...(truncated)"
}
