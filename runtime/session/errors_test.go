package session

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/AltairaLabs/roboshen/pkg/errors"
	"github.com/AltairaLabs/roboshen/runtime/audio"
	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/live"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"permission sentinel", fmt.Errorf("open: %w", audio.ErrPermissionDenied), ErrorPermissionDenied},
		{"device sentinel", audio.ErrDeviceNotFound, ErrorDeviceNotFound},
		{"unreachable sentinel", fmt.Errorf("dial: %w", live.ErrUnreachable), ErrorServiceUnreachable},
		{"bad handshake", fmt.Errorf("dial: %w", websocket.ErrBadHandshake), ErrorServiceUnreachable},
		{"forbidden", pkgerrors.New("gemini", "Connect", errors.New("denied")).WithStatusCode(403), ErrorServiceUnreachable},
		{"unauthorized", pkgerrors.New("gemini", "Connect", errors.New("denied")).WithStatusCode(401), ErrorServiceUnreachable},
		{"server error", pkgerrors.New("gemini", "Connect", errors.New("oops")).WithStatusCode(500), ErrorUnknown},
		{"net error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, ErrorServiceUnreachable},
		{"NotAllowedError text", errors.New("NotAllowedError: blocked"), ErrorPermissionDenied},
		{"permission text", errors.New("Permission dismissed"), ErrorPermissionDenied},
		{"api key text", errors.New("API key not valid. Please pass a valid API key."), ErrorServiceUnreachable},
		{"status text", errors.New("request failed with 403"), ErrorServiceUnreachable},
		{"cors text", errors.New("blocked by CORS policy"), ErrorServiceUnreachable},
		{"network text", errors.New("Network is unreachable"), ErrorServiceUnreachable},
		{"device text", errors.New("Requested device not found"), ErrorDeviceNotFound},
		{"NotFoundError text", errors.New("NotFoundError"), ErrorDeviceNotFound},
		{"anything else", errors.New("boom"), ErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, nil)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil, nil))
}

func TestClassify_PassesAppErrorThrough(t *testing.T) {
	original := TransportDropped(errors.New("reset"), nil)
	got := Classify(fmt.Errorf("wrapped: %w", original), nil)
	assert.Same(t, original, got)
}

func TestNewAppError_Localized(t *testing.T) {
	fa := NewAppError(ErrorServiceUnreachable, errors.New("x"), i18n.Default())
	assert.Equal(t, "خطا در ارتباط با سرور", fa.Title)
	assert.Len(t, fa.Steps, 3)

	en := NewAppError(ErrorServiceUnreachable, errors.New("x"), i18n.NewPrinter("en-US"))
	assert.Equal(t, "Could not reach the server", en.Title)
	assert.Equal(t, "Check your internet connection.", en.Steps[0])
}

func TestNewAppError_Unknown(t *testing.T) {
	withCause := NewAppError(ErrorUnknown, errors.New("disk on fire"), nil)
	assert.Equal(t, "disk on fire", withCause.Message)
	assert.Empty(t, withCause.Steps)
	assert.Equal(t, "unknown: disk on fire", withCause.Error())

	bare := NewAppError(ErrorUnknown, nil, nil)
	assert.Equal(t, i18n.Default().Text(i18n.ErrorUnknownMessage), bare.Message)

	unrecognized := NewAppError(ErrorKind("mystery"), nil, nil)
	assert.Equal(t, ErrorUnknown, unrecognized.Kind)
}

func TestTransportDropped(t *testing.T) {
	cause := errors.New("connection reset")
	err := TransportDropped(cause, i18n.NewPrinter("en"))
	assert.Equal(t, ErrorTransportDropped, err.Kind)
	assert.Equal(t, "Connection lost", err.Title)
	assert.Len(t, err.Steps, 2)
	assert.ErrorIs(t, err, cause)
}
