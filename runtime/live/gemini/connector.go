// Package gemini implements live.Connector over the Gemini Live
// BidiGenerateContent websocket API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"

	pkgerrors "github.com/AltairaLabs/roboshen/pkg/errors"
	"github.com/AltairaLabs/roboshen/runtime/credentials"
	"github.com/AltairaLabs/roboshen/runtime/internal/streaming"
	"github.com/AltairaLabs/roboshen/runtime/live"
	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// DefaultURL is the Live API endpoint.
const DefaultURL = "wss://generativelanguage.googleapis.com/ws/" +
	"google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Connection defaults.
const (
	// MaxMessageSize is the maximum allowed WebSocket message size (16MB).
	MaxMessageSize = 16 * 1024 * 1024

	DefaultDialTimeout       = 45 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryBackoffBase  = 1 * time.Second
	DefaultRetryBackoffMax   = 30 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultSetupTimeout      = 10 * time.Second

	component = "gemini-live"
)

// ErrSetupTimeout is reported when setupComplete does not arrive in time.
var ErrSetupTimeout = fmt.Errorf("%w: gemini live setup not acknowledged", live.ErrUnreachable)

// Config configures a Connector.
type Config struct {
	URL        string
	Credential credentials.Credential

	DialTimeout       time.Duration
	MaxRetries        int
	RetryBackoffBase  time.Duration
	RetryBackoffMax   time.Duration
	HeartbeatInterval time.Duration
	SetupTimeout      time.Duration
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Credential == nil {
		c.Credential = &credentials.NoOpCredential{}
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoffBase == 0 {
		c.RetryBackoffBase = DefaultRetryBackoffBase
	}
	if c.RetryBackoffMax == 0 {
		c.RetryBackoffMax = DefaultRetryBackoffMax
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.SetupTimeout == 0 {
		c.SetupTimeout = DefaultSetupTimeout
	}
}

// Connector dials Gemini Live sessions.
type Connector struct {
	cfg Config
}

// NewConnector creates a Connector.
func NewConnector(cfg Config) *Connector {
	cfg.defaults()
	return &Connector{cfg: cfg}
}

// Connect dials, sends the setup message and starts the receive loop. The
// returned Conn reports EventOpen once the service acknowledges setup.
// Failures to reach or authenticate with the service wrap live.ErrUnreachable.
func (c *Connector) Connect(ctx context.Context, setup *live.Setup) (live.Conn, error) {
	headers, err := credentials.Header(ctx, c.cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", live.ErrUnreachable, err)
	}

	ws, err := streaming.Dial(ctx, c.cfg.URL, streaming.DialOptions{
		Headers:          headers,
		HandshakeTimeout: c.cfg.DialTimeout,
		ReadLimit:        MaxMessageSize,
		Retry: streaming.Retry{
			Attempts:   c.cfg.MaxRetries,
			Backoff:    c.cfg.RetryBackoffBase,
			MaxBackoff: c.cfg.RetryBackoffMax,
		},
		Component: component,
	})
	if err != nil {
		return nil, classifyDialError(err)
	}

	setupMsg := buildSetupMessage(setup)
	logSetupMessage(setupMsg)
	if err := ws.Send(setupMsg); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("failed to send setup message: %w", err)
	}

	sess, err := streaming.NewSession(context.WithoutCancel(ctx), streaming.SessionConfig[live.Event]{
		Conn:   ws,
		Decode: decode,
	})
	if err != nil {
		_ = ws.Close()
		return nil, err
	}

	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	ws.KeepAlive(hbCtx, c.cfg.HeartbeatInterval)
	conn := newConn(sess, c.cfg.SetupTimeout, stopHeartbeat)

	logger.Info("Gemini Live connected", "model", modelPath(setup.Model))
	return conn, nil
}

// classifyDialError marks handshake rejections and network failures as
// live.ErrUnreachable. Context cancellation passes through unchanged.
func classifyDialError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if pkgerrors.StatusCode(err) != 0 || errors.Is(err, websocket.ErrBadHandshake) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", live.ErrUnreachable, err)
	}
	return err
}

var _ live.Connector = (*Connector)(nil)
