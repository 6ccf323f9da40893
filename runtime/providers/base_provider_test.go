package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/AltairaLabs/roboshen/pkg/errors"
	"github.com/AltairaLabs/roboshen/runtime/credentials"
)

func TestMakeJSONRequest_Success(t *testing.T) {
	var gotKey, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(credentials.GeminiKeyHeader)
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	base := NewBaseProvider("test", credentials.NewAPIKeyCredential("k1"), nil, 0)
	defer base.Close()

	body, err := base.MakeJSONRequest(context.Background(), srv.URL+"/x", "Op", map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "k1", gotKey)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "b", gotBody["a"])
}

func TestMakeJSONRequest_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	base := NewBaseProvider("gemini", nil, nil, 0)
	_, err := base.MakeJSONRequest(context.Background(), srv.URL, "GenerateContent", struct{}{})
	require.Error(t, err)

	var ce *pkgerrors.ContextualError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "gemini", ce.Component)
	assert.Equal(t, "GenerateContent", ce.Operation)
	assert.Equal(t, http.StatusForbidden, ce.StatusCode)
	assert.Equal(t, "PERMISSION_DENIED", ce.Details["status"])
	assert.Contains(t, err.Error(), "API key not valid")
	assert.True(t, pkgerrors.IsClientError(err))
}

func TestMakeJSONRequest_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	base := NewBaseProvider("imagen", nil, nil, 0)
	_, err := base.MakeJSONRequest(context.Background(), srv.URL, "Predict", struct{}{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, pkgerrors.StatusCode(err))
	assert.Contains(t, err.Error(), "(truncated)")
}

func TestMakeJSONRequest_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	base := NewBaseProvider("test", nil, nil, 0)
	_, err := base.MakeJSONRequest(ctx, srv.URL, "Op", struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBaseProvider_CopiesClient(t *testing.T) {
	orig := &http.Client{}
	base := NewBaseProvider("test", nil, orig, 0)
	assert.NotSame(t, orig, base.HTTPClient())
	assert.Nil(t, orig.Transport)
	assert.NotNil(t, base.HTTPClient().Transport)
	assert.Equal(t, "test", base.ID())
}
