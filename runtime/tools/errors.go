package tools

import "errors"

// Sentinel errors for tool operations.
var (
	// ErrToolNotFound is returned when a requested tool is not found in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNameRequired is returned when registering a tool without a name.
	ErrToolNameRequired = errors.New("tool name is required")

	// ErrToolDescriptionRequired is returned when registering a tool without a description.
	ErrToolDescriptionRequired = errors.New("tool description is required")

	// ErrInputSchemaRequired is returned when registering a tool without an input schema.
	ErrInputSchemaRequired = errors.New("input schema is required")

	// ErrDuplicateTool is returned when a name is registered twice.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrCapabilityPanic wraps a recovered panic.
	ErrCapabilityPanic = errors.New("capability panicked")

	// ErrEmptyOutcome is returned when a capability reports success without an outcome.
	ErrEmptyOutcome = errors.New("capability returned no outcome")
)
