// Package tools executes the capabilities the model may call during a
// session.
//
// A Registry holds Capabilities keyed by name and exports their
// descriptors as function declarations for the live setup. A Dispatcher
// runs a batch of model-issued Invocations concurrently and delivers
// exactly one Result per invocation, whether the capability succeeded,
// failed, timed out or panicked. Failed invocations carry a localised
// transcript notice and a generic acknowledgement so the model's turn is
// never left waiting.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AltairaLabs/roboshen/runtime/live"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

// Descriptor describes a capability to the model.
type Descriptor struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	InputSchema json.RawMessage `json:"input_schema" yaml:"input_schema"` // JSON Schema Draft-07
}

// Declaration converts the descriptor to a live function declaration.
func (d *Descriptor) Declaration() live.FunctionDeclaration {
	return live.FunctionDeclaration{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.InputSchema,
	}
}

// Outcome is what a successful capability produced: the transcript entry
// to show and the text returned to the model.
type Outcome struct {
	Kind    transcript.Kind
	Payload string
	Ack     string
}

// Capability is an externally backed function the model can invoke.
type Capability interface {
	Descriptor() *Descriptor
	Execute(ctx context.Context, args json.RawMessage) (*Outcome, error)
}

// Func adapts a function to Capability.
type Func struct {
	Desc *Descriptor
	Fn   func(ctx context.Context, args json.RawMessage) (*Outcome, error)
}

// Descriptor returns f.Desc.
func (f *Func) Descriptor() *Descriptor { return f.Desc }

// Execute calls f.Fn.
func (f *Func) Execute(ctx context.Context, args json.RawMessage) (*Outcome, error) {
	return f.Fn(ctx, args)
}

// Invocation is one model-issued call.
type Invocation struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// InvocationsFrom converts live function calls.
func InvocationsFrom(calls []live.FunctionCall) []Invocation {
	out := make([]Invocation, len(calls))
	for i, c := range calls {
		out[i] = Invocation{ID: c.ID, Name: c.Name, Args: c.Args}
	}
	return out
}

// Status is the terminal state of an invocation.
type Status string

const (
	// StatusCompleted indicates the capability produced an outcome.
	StatusCompleted Status = "completed"
	// StatusFailed indicates any failure: unknown tool, invalid args,
	// capability error, timeout or panic.
	StatusFailed Status = "failed"
)

// Result is the resolution of one Invocation.
type Result struct {
	Invocation Invocation
	Status     Status
	Outcome    Outcome
	Err        error
	Duration   time.Duration
}

// Response builds the acknowledgement for the model.
func (r *Result) Response() live.FunctionResponse {
	return live.FunctionResponse{
		ID:     r.Invocation.ID,
		Name:   r.Invocation.Name,
		Result: r.Outcome.Ack,
	}
}

// ValidationError represents a tool validation failure
type ValidationError struct {
	Type   string `json:"type"` // "args_invalid" | "descriptor_invalid"
	Tool   string `json:"tool"`
	Detail string `json:"detail"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s validation error (%s): %s", e.Tool, e.Type, e.Detail)
}
