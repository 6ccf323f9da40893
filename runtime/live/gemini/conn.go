package gemini

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AltairaLabs/roboshen/runtime/internal/streaming"
	"github.com/AltairaLabs/roboshen/runtime/live"
	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// conn adapts a streaming session to live.Conn.
type conn struct {
	sess          *streaming.Session[live.Event]
	events        chan live.Event
	stopHeartbeat context.CancelFunc
	done          chan struct{}
	closeOnce     sync.Once

	mu     sync.Mutex
	closed bool
}

func newConn(sess *streaming.Session[live.Event], setupTimeout time.Duration, stopHeartbeat context.CancelFunc) *conn {
	c := &conn{
		sess:          sess,
		events:        make(chan live.Event, streaming.DefaultResponseChannelSize),
		stopHeartbeat: stopHeartbeat,
		done:          make(chan struct{}),
	}
	go c.pump(setupTimeout)
	return c
}

// pump forwards session events, enforcing that EventOpen arrives within
// the setup timeout and that EventClose is always last. Once Close is
// called nobody is required to drain events, so they are dropped.
func (c *conn) pump(setupTimeout time.Duration) {
	defer close(c.events)
	defer c.stopHeartbeat()

	timer := time.NewTimer(setupTimeout)
	defer timer.Stop()
	opened := false

	for {
		select {
		case <-timer.C:
			if !opened {
				logger.Warn("Gemini Live setup timed out", "timeout", setupTimeout)
				c.emit(live.Event{Type: live.EventError, Err: ErrSetupTimeout})
				_ = c.sess.Close()
			}
		case ev, ok := <-c.sess.Response():
			if !ok {
				if err := c.sess.Err(); err != nil {
					c.emit(live.Event{Type: live.EventError, Err: err})
				}
				c.markClosed()
				c.emit(live.Event{Type: live.EventClose})
				return
			}
			if ev.Type == live.EventOpen {
				if opened {
					continue
				}
				opened = true
			}
			c.emit(ev)
		}
	}
}

// emit delivers ev. When the buffer is full and the conn was closed
// locally, ev is dropped instead of blocking.
func (c *conn) emit(ev live.Event) {
	select {
	case c.events <- ev:
		return
	default:
	}
	select {
	case c.events <- ev:
	case <-c.done:
		logger.Debug("Dropping event after close", "event", ev.Type.String())
	}
}

func (c *conn) Events() <-chan live.Event {
	return c.events
}

func (c *conn) SendRealtimeInput(m live.Media) error {
	return c.send(buildRealtimeInput(m))
}

func (c *conn) SendToolResponse(responses ...live.FunctionResponse) error {
	return c.send(buildToolResponse(responses))
}

func (c *conn) SendText(text string) error {
	return c.send(buildTextMessage(text))
}

func (c *conn) send(msg map[string]any) error {
	if c.isClosed() {
		return live.ErrClosed
	}
	err := c.sess.Send(msg)
	if errors.Is(err, streaming.ErrSessionClosed) || errors.Is(err, streaming.ErrClosed) {
		return live.ErrClosed
	}
	return err
}

func (c *conn) Close() error {
	c.markClosed()
	c.closeOnce.Do(func() { close(c.done) })
	return c.sess.Close()
}

func (c *conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
