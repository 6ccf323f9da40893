// Package livetest provides a scriptable in-memory live.Connector for tests.
package livetest

import (
	"context"
	"sync"

	"github.com/AltairaLabs/roboshen/runtime/live"
)

const eventBuffer = 256

// Connector hands out Conns that tests drive by hand.
type Connector struct {
	// Err, when set, is returned by Connect.
	Err error

	// Gate, when set, holds Connect until it is closed or ctx ends.
	Gate chan struct{}

	// AutoOpen emits EventOpen as soon as the Conn is created.
	AutoOpen bool

	mu     sync.Mutex
	conns  []*Conn
	setups []*live.Setup
	dialed chan *Conn
}

// NewConnector returns a Connector.
func NewConnector() *Connector {
	return &Connector{dialed: make(chan *Conn, eventBuffer)}
}

// Connect implements live.Connector.
func (c *Connector) Connect(ctx context.Context, setup *live.Setup) (live.Conn, error) {
	c.mu.Lock()
	c.setups = append(c.setups, setup)
	gate, err := c.Gate, c.Err
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	conn := NewConn()
	c.mu.Lock()
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
	if c.AutoOpen {
		conn.Open()
	}
	c.dialed <- conn
	return conn, nil
}

// Dialed delivers each Conn as it is created.
func (c *Connector) Dialed() <-chan *Conn {
	return c.dialed
}

// Conns returns every Conn created so far.
func (c *Connector) Conns() []*Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Conn(nil), c.conns...)
}

// Setups returns every Setup passed to Connect.
func (c *Connector) Setups() []*live.Setup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*live.Setup(nil), c.setups...)
}

// Conn is an in-memory live.Conn. Events are buffered so tests can script a
// sequence before the consumer starts reading.
type Conn struct {
	events chan live.Event

	mu        sync.Mutex
	closed    bool
	media     []live.Media
	responses []live.FunctionResponse
	dropped   []live.FunctionResponse
	texts     []string
	sent      chan struct{}
}

// NewConn returns an unopened Conn.
func NewConn() *Conn {
	return &Conn{
		events: make(chan live.Event, eventBuffer),
		sent:   make(chan struct{}, eventBuffer),
	}
}

// Events implements live.Conn.
func (c *Conn) Events() <-chan live.Event {
	return c.events
}

// Open emits EventOpen.
func (c *Conn) Open() {
	c.emit(live.Event{Type: live.EventOpen})
}

// Deliver emits an inbound message.
func (c *Conn) Deliver(msg *live.ServerMessage) {
	c.emit(live.Event{Type: live.EventMessage, Message: msg})
}

// Fail emits EventError followed by EventClose.
func (c *Conn) Fail(err error) {
	c.emit(live.Event{Type: live.EventError, Err: err})
	c.finish()
}

// CloseRemote simulates the peer ending the session.
func (c *Conn) CloseRemote() {
	c.finish()
}

// SendRealtimeInput implements live.Conn.
func (c *Conn) SendRealtimeInput(m live.Media) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return live.ErrClosed
	}
	c.media = append(c.media, m)
	return nil
}

// SendToolResponse implements live.Conn. Responses sent after close are
// recorded as dropped.
func (c *Conn) SendToolResponse(responses ...live.FunctionResponse) error {
	c.mu.Lock()
	defer c.notify()
	defer c.mu.Unlock()
	if c.closed {
		c.dropped = append(c.dropped, responses...)
		return live.ErrClosed
	}
	c.responses = append(c.responses, responses...)
	return nil
}

// SendText implements live.Conn.
func (c *Conn) SendText(text string) error {
	c.mu.Lock()
	defer c.notify()
	defer c.mu.Unlock()
	if c.closed {
		return live.ErrClosed
	}
	c.texts = append(c.texts, text)
	return nil
}

// Close implements live.Conn.
func (c *Conn) Close() error {
	c.finish()
	return nil
}

// Closed reports whether the Conn has been closed from either side.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Media returns the realtime input sent so far.
func (c *Conn) Media() []live.Media {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]live.Media(nil), c.media...)
}

// Responses returns the tool responses accepted while open.
func (c *Conn) Responses() []live.FunctionResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]live.FunctionResponse(nil), c.responses...)
}

// Dropped returns tool responses that arrived after close.
func (c *Conn) Dropped() []live.FunctionResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]live.FunctionResponse(nil), c.dropped...)
}

// Texts returns the text turns sent so far.
func (c *Conn) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

// Sent is signalled after every tool response or text send attempt.
func (c *Conn) Sent() <-chan struct{} {
	return c.sent
}

func (c *Conn) notify() {
	select {
	case c.sent <- struct{}{}:
	default:
	}
}

func (c *Conn) emit(ev live.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ev
}

func (c *Conn) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.events <- live.Event{Type: live.EventClose}
	close(c.events)
}

var _ live.Conn = (*Conn)(nil)
var _ live.Connector = (*Connector)(nil)
