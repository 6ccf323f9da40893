// Package streaming is the websocket transport under realtime model
// connectors. Dial retries the handshake; a Conn sends JSON frames, pumps
// incoming frames into a channel and keeps the link alive with pings.
//
// Message formats stay with the connector.
package streaming

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	pkgerrors "github.com/AltairaLabs/roboshen/pkg/errors"
	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// Transport defaults.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 16 << 20
	DefaultAttempts         = 3
	DefaultBackoff          = time.Second
	DefaultMaxBackoff       = 30 * time.Second

	closeGrace = 5 * time.Second
)

// ErrClosed is returned by writes on a closed Conn.
var ErrClosed = errors.New("websocket closed")

// Retry bounds handshake attempts. Delays double from Backoff up to
// MaxBackoff with ±25% jitter.
type Retry struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func (r *Retry) fill() {
	if r.Attempts <= 0 {
		r.Attempts = DefaultAttempts
	}
	if r.Backoff <= 0 {
		r.Backoff = DefaultBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = DefaultMaxBackoff
	}
}

// delay is the wait after the given failed attempt (1-based).
func (r *Retry) delay(attempt int) time.Duration {
	d := r.Backoff << (attempt - 1)
	if d <= 0 || d > r.MaxBackoff {
		d = r.MaxBackoff
	}
	jittered := time.Duration(float64(d) * (0.75 + rand.Float64()*0.5)) //nolint:gosec // jitter only
	return min(jittered, r.MaxBackoff)
}

// DialOptions configures Dial.
type DialOptions struct {
	Headers          http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
	Retry            Retry
	// Component names the owner in logs and errors, e.g. "gemini-live".
	Component string
}

func (o *DialOptions) fill() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.Component == "" {
		o.Component = "websocket"
	}
	o.Retry.fill()
}

// Dial opens a websocket to url. Network failures and 5xx handshakes are
// retried; a 4xx rejection is returned at once as a
// *pkgerrors.ContextualError carrying the status.
func Dial(ctx context.Context, url string, opts DialOptions) (*Conn, error) {
	opts.fill()
	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Retry.Attempts; attempt++ {
		ws, err := dialOnce(ctx, &dialer, url, &opts)
		if err == nil {
			logger.Info("websocket connected", "component", opts.Component, "attempt", attempt)
			return newConn(ws, &opts), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if pkgerrors.IsClientError(err) {
			return nil, err
		}
		if attempt == opts.Retry.Attempts {
			break
		}

		wait := opts.Retry.delay(attempt)
		logger.Warn("websocket dial failed, retrying", "component", opts.Component,
			"attempt", attempt, "of", opts.Retry.Attempts, "wait", wait, "error", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("dial %s: %d attempts: %w", opts.Component, opts.Retry.Attempts, lastErr)
}

func dialOnce(ctx context.Context, d *websocket.Dialer, url string, opts *DialOptions) (*websocket.Conn, error) {
	logger.Debug("dialing websocket", "component", opts.Component, "url", logger.RedactSensitiveData(url))
	ws, resp, err := d.DialContext(ctx, url, opts.Headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, pkgerrors.New(opts.Component, "Dial", err).WithStatusCode(resp.StatusCode)
		}
		return nil, err
	}
	ws.SetReadLimit(opts.ReadLimit)
	return ws, nil
}

// Conn is an open websocket. Writes are serialized; one goroutine may
// Pump at a time.
type Conn struct {
	ws           *websocket.Conn
	component    string
	writeTimeout time.Duration

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

func newConn(ws *websocket.Conn, opts *DialOptions) *Conn {
	return &Conn{
		ws:           ws,
		component:    opts.Component,
		writeTimeout: opts.WriteTimeout,
		done:         make(chan struct{}),
	}
}

// Component returns the owner name given to Dial.
func (c *Conn) Component() string {
	return c.component
}

// Send writes msg as a JSON text frame.
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %T: %w", msg, err)
	}
	return c.SendRaw(data)
}

// SendRaw writes data as a text frame.
func (c *Conn) SendRaw(data []byte) error {
	return c.write(websocket.TextMessage, data, c.writeTimeout)
}

func (c *Conn) write(kind int, data []byte, timeout time.Duration) error {
	if c.Closed() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(kind, data); err != nil {
		if c.Closed() {
			return ErrClosed
		}
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Pump reads frames into out until the link ends. It returns nil when the
// peer closes normally or Close is called, ctx.Err() when ctx ends, and
// the read error otherwise.
func (c *Conn) Pump(ctx context.Context, out chan<- []byte) error {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() })
	defer stop()

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case c.Closed(),
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				return nil
			default:
				return err
			}
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		select {
		case out <- data:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		}
	}
}

// KeepAlive pings every interval until ctx ends, the Conn closes, or a
// ping fails.
func (c *Conn) KeepAlive(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil, c.writeTimeout); err != nil {
					logger.Debug("keepalive stopped", "component", c.component, "error", err)
					return
				}
			}
		}
	}()
}

// Close sends a normal-closure frame and closes the socket. Later calls
// return nil.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(closeGrace))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
