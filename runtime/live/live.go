// Package live defines the realtime multimodal session abstraction: a
// bidirectional channel to a hosted model carrying microphone audio up and
// audio, tool calls and control signals down.
//
// A Connector dials a Conn. Readiness, inbound messages, transport errors
// and closure arrive as Events on Conn.Events in that order, with
// EventClose always last.
package live

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrClosed is returned by sends on a closed Conn.
	ErrClosed = errors.New("live: connection closed")

	// ErrUnreachable marks failures to reach or authenticate with the model
	// service.
	ErrUnreachable = errors.New("live: service unreachable")
)

// Media is one base64-framed blob of audio or image data.
type Media struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// FunctionDeclaration advertises a capability the model may call.
type FunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// FunctionCall is one model-issued tool invocation.
type FunctionCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// FunctionResponse acknowledges one FunctionCall by ID.
type FunctionResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result string `json:"result"`
}

// Setup is the session configuration sent when connecting.
type Setup struct {
	Model             string
	Voice             string
	SystemInstruction string
	Tools             []FunctionDeclaration

	// Transcribe asks the service for input and output transcriptions.
	Transcribe bool
}

// ServerMessage is one decoded inbound message. Fields are populated by
// presence; a single message may carry several.
type ServerMessage struct {
	Interrupted  bool
	TurnComplete bool
	ToolCalls    []FunctionCall
	Audio        []Media
	Text         string

	InputTranscript  string
	OutputTranscript string
}

// Empty reports whether the message carries nothing actionable.
func (m *ServerMessage) Empty() bool {
	return !m.Interrupted && !m.TurnComplete && len(m.ToolCalls) == 0 && len(m.Audio) == 0 &&
		m.Text == "" && m.InputTranscript == "" && m.OutputTranscript == ""
}

// EventType discriminates Event.
type EventType int

// Event types in delivery order.
const (
	EventOpen EventType = iota
	EventMessage
	EventError
	EventClose
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is delivered on Conn.Events.
type Event struct {
	Type    EventType
	Message *ServerMessage
	Err     error
}

// Conn is an open realtime session.
type Conn interface {
	// Events delivers lifecycle and inbound events. The channel is closed
	// after EventClose.
	Events() <-chan Event

	SendRealtimeInput(m Media) error
	SendToolResponse(responses ...FunctionResponse) error
	// SendText sends a complete user text turn.
	SendText(text string) error

	// Close ends the session. Safe to call more than once.
	Close() error
}

// Connector opens sessions.
type Connector interface {
	Connect(ctx context.Context, setup *Setup) (Conn, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, setup *Setup) (Conn, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, setup *Setup) (Conn, error) {
	return f(ctx, setup)
}
