package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/assistant.json
var embeddedSchema string

// SchemaSourceEnvVar overrides the embedded schema with a file path.
const SchemaSourceEnvVar = "ROBOSHEN_SCHEMA_SOURCE"

const errorFormat = "  - %s"

// SchemaValidationError represents a validation error from JSON schema validation
type SchemaValidationError struct {
	Field       string
	Description string
	Value       interface{}
}

// Error implements the error interface
func (e SchemaValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// SchemaValidationResult contains the results of schema validation
type SchemaValidationResult struct {
	Valid  bool
	Errors []SchemaValidationError
}

var (
	compiledOnce   sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

// EmbeddedSchema returns the assistant JSON schema shipped with the binary.
func EmbeddedSchema() string {
	return embeddedSchema
}

// schemaLoader picks the embedded schema unless SchemaSourceEnvVar names a file.
func schemaLoader() (gojsonschema.JSONLoader, error) {
	source := os.Getenv(SchemaSourceEnvVar)
	if source == "" {
		return gojsonschema.NewStringLoader(embeddedSchema), nil
	}
	data, err := os.ReadFile(source) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, fmt.Errorf("failed to read schema from %s: %w", source, err)
	}
	return gojsonschema.NewStringLoader(string(data)), nil
}

func loadSchema() (*gojsonschema.Schema, error) {
	if os.Getenv(SchemaSourceEnvVar) != "" {
		loader, err := schemaLoader()
		if err != nil {
			return nil, err
		}
		return gojsonschema.NewSchema(loader)
	}
	compiledOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(embeddedSchema))
	})
	return compiledSchema, compileErr
}

// ValidateWithSchema validates YAML data against the assistant schema.
func ValidateWithSchema(yamlData []byte) (*SchemaValidationResult, error) {
	// Convert YAML to JSON for schema validation
	var data interface{}
	if err := yaml.Unmarshal(yamlData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	validationResult := &SchemaValidationResult{
		Valid:  result.Valid(),
		Errors: make([]SchemaValidationError, 0),
	}
	for _, e := range result.Errors() {
		validationResult.Errors = append(validationResult.Errors, SchemaValidationError{
			Field:       e.Field(),
			Description: e.Description(),
			Value:       e.Value(),
		})
	}
	return validationResult, nil
}

// ValidateAssistant validates an assistant manifest against its schema.
func ValidateAssistant(yamlData []byte) error {
	result, err := ValidateWithSchema(yamlData)
	if err != nil {
		return err
	}

	if !result.Valid {
		var errorMessages []string
		for _, e := range result.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf(errorFormat, e.Error()))
		}
		return fmt.Errorf("assistant configuration does not match schema:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}
