package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerMessage_Empty(t *testing.T) {
	assert.True(t, (&ServerMessage{}).Empty())
	assert.False(t, (&ServerMessage{Interrupted: true}).Empty())
	assert.False(t, (&ServerMessage{Audio: []Media{{Data: "AA=="}}}).Empty())
	assert.False(t, (&ServerMessage{ToolCalls: []FunctionCall{{ID: "1"}}}).Empty())
	assert.False(t, (&ServerMessage{OutputTranscript: "hi"}).Empty())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "open", EventOpen.String())
	assert.Equal(t, "message", EventMessage.String())
	assert.Equal(t, "error", EventError.String())
	assert.Equal(t, "close", EventClose.String())
	assert.Equal(t, "unknown", EventType(42).String())
}

func TestConnectorFunc(t *testing.T) {
	var got *Setup
	c := ConnectorFunc(func(_ context.Context, s *Setup) (Conn, error) {
		got = s
		return nil, ErrUnreachable
	})
	_, err := c.Connect(context.Background(), &Setup{Model: "m"})
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, "m", got.Model)
}
