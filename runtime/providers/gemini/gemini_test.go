package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/AltairaLabs/roboshen/pkg/errors"
	"github.com/AltairaLabs/roboshen/runtime/credentials"
)

type captured struct {
	path string
	key  string
	body map[string]any
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.key = r.Header.Get(credentials.GeminiKeyHeader)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &c.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

const groundedResponse = `{
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "world"}]},
    "finishReason": "STOP",
    "groundingMetadata": {
      "groundingChunks": [
        {"web": {"uri": "https://example.com/a", "title": "A"}},
        {"web": {"uri": "https://example.com/b"}}
      ]
    }
  }],
  "usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10}
}`

func TestGenerateContent(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, groundedResponse)

	client := NewClient(Config{BaseURL: srv.URL, Credential: credentials.NewAPIKeyCredential("secret")})
	resp, err := client.GenerateContent(context.Background(), "what is new?")
	require.NoError(t, err)

	assert.Equal(t, "Hello world", resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, []Source{{URI: "https://example.com/a", Title: "A"}, {URI: "https://example.com/b"}}, resp.Sources)
	assert.Equal(t, 7, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)

	assert.Equal(t, "/models/gemini-2.5-pro:generateContent", got.path)
	assert.Equal(t, "secret", got.key)

	contents := got.body["contents"].([]any)
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "what is new?", first["parts"].([]any)[0].(map[string]any)["text"])

	tools := got.body["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Contains(t, tools[0].(map[string]any), "googleSearch")
}

func TestGenerateContent_SearchDisabled(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"candidates":[]}`)

	client := NewClient(Config{BaseURL: srv.URL, Model: "gemini-test", DisableSearch: true})
	resp, err := client.GenerateContent(context.Background(), "hi")
	require.NoError(t, err)

	assert.Empty(t, resp.Text)
	assert.Equal(t, "/models/gemini-test:generateContent", got.path)
	assert.NotContains(t, got.body, "tools")
	assert.Equal(t, "gemini-test", client.Model())
}

func TestGenerateContent_Blocked(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`)

	_, err := NewClient(Config{BaseURL: srv.URL}).GenerateContent(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGenerateContent_HTTPError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest,
		`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)

	_, err := NewClient(Config{BaseURL: srv.URL}).GenerateContent(context.Background(), "x")
	require.Error(t, err)

	var ce *pkgerrors.ContextualError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "gemini", ce.Component)
	assert.Equal(t, http.StatusBadRequest, ce.StatusCode)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestGenerateContent_InvalidJSON(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `not json`)

	_, err := NewClient(Config{BaseURL: srv.URL}).GenerateContent(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestParseResponse_SkipsNonTextParts(t *testing.T) {
	resp, err := parseResponse([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"data":"x"}},{"text":"only"}]}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "only", resp.Text)
	assert.Empty(t, resp.Sources)
}
