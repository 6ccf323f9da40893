package streaming

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// DefaultResponseChannelSize is the buffer of a session's response channel.
const DefaultResponseChannelSize = 10

// ErrSessionClosed is returned when sending on a closed session.
var ErrSessionClosed = errors.New("session is closed")

// Decoder turns one raw WebSocket message into zero or more values.
// A non-nil error ends the session.
type Decoder[T any] func(data []byte) ([]T, error)

// SessionConfig configures a streaming Session.
type SessionConfig[T any] struct {
	// Conn is the connected WebSocket. Required.
	Conn *Conn

	// Decode converts raw messages. Required.
	Decode Decoder[T]

	// ResponseChannelSize defaults to DefaultResponseChannelSize.
	ResponseChannelSize int
}

// Session runs the single receive loop of a Conn, decodes each message and
// emits the results on Response. The response channel is closed when the
// loop ends; Err then reports why.
type Session[T any] struct {
	conn   *Conn
	decode Decoder[T]
	ctx    context.Context
	cancel context.CancelFunc

	responseCh chan T

	mu     sync.Mutex
	closed bool
	err    error
}

// NewSession creates a session and starts its receive loop.
func NewSession[T any](ctx context.Context, cfg SessionConfig[T]) (*Session[T], error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("streaming.SessionConfig.Conn is required")
	}
	if cfg.Decode == nil {
		return nil, fmt.Errorf("streaming.SessionConfig.Decode is required")
	}
	if cfg.ResponseChannelSize <= 0 {
		cfg.ResponseChannelSize = DefaultResponseChannelSize
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session[T]{
		conn:       cfg.Conn,
		decode:     cfg.Decode,
		ctx:        sessionCtx,
		cancel:     cancel,
		responseCh: make(chan T, cfg.ResponseChannelSize),
	}
	go s.receiveLoop(cfg.ResponseChannelSize)
	return s, nil
}

// Send JSON-encodes msg and sends it on the connection.
func (s *Session[T]) Send(msg any) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	return s.conn.Send(msg)
}

// Response returns the decoded message channel.
func (s *Session[T]) Response() <-chan T {
	return s.responseCh
}

// Done is closed when the session context ends.
func (s *Session[T]) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Err returns the error that ended the receive loop, or nil for a clean
// close. Only meaningful after Response has been closed.
func (s *Session[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the receive loop and closes the connection. Safe to call
// multiple times.
func (s *Session[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.conn.Close()
}

// Closed reports whether Close has been called.
func (s *Session[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session[T]) receiveLoop(size int) {
	defer close(s.responseCh)

	msgCh := make(chan []byte, size)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.conn.Pump(s.ctx, msgCh)
	}()

	for {
		select {
		case err := <-errCh:
			// Drain anything the reader queued before it stopped.
			for {
				select {
				case data := <-msgCh:
					if !s.handle(data) {
						return
					}
					continue
				default:
				}
				break
			}
			if err != nil && !errors.Is(err, context.Canceled) && !s.Closed() {
				logger.Debug("receive loop ended", "component", s.conn.Component(), "error", err)
				s.setErr(err)
			}
			return

		case data := <-msgCh:
			if !s.handle(data) {
				return
			}
		}
	}
}

func (s *Session[T]) handle(data []byte) bool {
	values, err := s.decode(data)
	if err != nil {
		logger.Error("message decode failed", "component", s.conn.Component(), "error", err)
		s.setErr(err)
		s.cancel()
		_ = s.conn.Close()
		return false
	}
	for i := range values {
		select {
		case s.responseCh <- values[i]:
		case <-s.ctx.Done():
			return false
		}
	}
	return true
}

func (s *Session[T]) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
