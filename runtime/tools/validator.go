package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator validates tool arguments against descriptor input
// schemas. Compiled schemas are cached by their source text.
type SchemaValidator struct {
	mu    sync.RWMutex
	cache map[string]*gojsonschema.Schema
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		cache: make(map[string]*gojsonschema.Schema),
	}
}

// ValidateArgs validates tool arguments against the input schema. Missing
// arguments are validated as an empty object.
func (sv *SchemaValidator) ValidateArgs(descriptor *Descriptor, args json.RawMessage) error {
	schema, err := sv.getSchema(string(descriptor.InputSchema))
	if err != nil {
		return fmt.Errorf("invalid input schema for tool %s: %w", descriptor.Name, err)
	}

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return &ValidationError{
			Type:   "args_invalid",
			Tool:   descriptor.Name,
			Detail: fmt.Sprintf("arguments are not valid JSON: %v", err),
		}
	}

	if !result.Valid() {
		details := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			details[i] = desc.String()
		}
		return &ValidationError{
			Type:   "args_invalid",
			Tool:   descriptor.Name,
			Detail: "argument validation failed: " + strings.Join(details, "; "),
		}
	}

	return nil
}

// Compile checks that schemaJSON is a usable schema, caching it.
func (sv *SchemaValidator) Compile(schemaJSON string) error {
	_, err := sv.getSchema(schemaJSON)
	return err
}

// getSchema retrieves or compiles a JSON schema
func (sv *SchemaValidator) getSchema(schemaJSON string) (*gojsonschema.Schema, error) {
	sv.mu.RLock()
	schema, exists := sv.cache[schemaJSON]
	sv.mu.RUnlock()
	if exists {
		return schema, nil
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, err
	}

	sv.mu.Lock()
	sv.cache[schemaJSON] = schema
	sv.mu.Unlock()
	return schema, nil
}
