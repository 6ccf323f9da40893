package livetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/roboshen/runtime/live"
)

func drain(t *testing.T, c *Conn) []live.EventType {
	t.Helper()
	var types []live.EventType
	for ev := range c.Events() {
		types = append(types, ev.Type)
	}
	return types
}

func TestConn_EventOrder(t *testing.T) {
	c := NewConn()
	c.Open()
	c.Deliver(&live.ServerMessage{TurnComplete: true})
	c.Fail(errors.New("boom"))
	c.Deliver(&live.ServerMessage{Interrupted: true})

	assert.Equal(t, []live.EventType{live.EventOpen, live.EventMessage, live.EventError, live.EventClose}, drain(t, c))
}

func TestConn_SendsAfterClose(t *testing.T) {
	c := NewConn()
	require.NoError(t, c.SendRealtimeInput(live.Media{Data: "AA=="}))
	require.NoError(t, c.SendToolResponse(live.FunctionResponse{ID: "1"}))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.SendToolResponse(live.FunctionResponse{ID: "2"}), live.ErrClosed)
	assert.ErrorIs(t, c.SendText("hi"), live.ErrClosed)
	assert.ErrorIs(t, c.SendRealtimeInput(live.Media{}), live.ErrClosed)

	assert.Len(t, c.Media(), 1)
	assert.Equal(t, "1", c.Responses()[0].ID)
	assert.Equal(t, "2", c.Dropped()[0].ID)
	assert.True(t, c.Closed())
}

func TestConnector_Gate(t *testing.T) {
	cn := NewConnector()
	cn.Gate = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := cn.Connect(ctx, &live.Setup{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(cn.Gate)
	conn, err := cn.Connect(context.Background(), &live.Setup{Model: "m"})
	require.NoError(t, err)
	assert.Same(t, conn, live.Conn(<-cn.Dialed()))
	assert.Len(t, cn.Setups(), 2)
	assert.Len(t, cn.Conns(), 1)
}

func TestConnector_Err(t *testing.T) {
	cn := NewConnector()
	cn.Err = live.ErrUnreachable
	_, err := cn.Connect(context.Background(), &live.Setup{})
	assert.ErrorIs(t, err, live.ErrUnreachable)
}
