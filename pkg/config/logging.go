package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// Log levels and formats accepted in spec.logging.
const (
	LogLevelTrace = "trace"
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatJSON = "json"
	LogFormatText = "text"
)

var (
	logLevels  = []string{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}
	logFormats = []string{LogFormatText, LogFormatJSON}
)

// LoggingConfigSpec is spec.logging.
type LoggingConfigSpec struct {
	DefaultLevel string `yaml:"defaultLevel,omitempty"`
	Format       string `yaml:"format,omitempty"`
	// File receives the log instead of stderr. Terminal UI runs default to
	// roboshen.log under the user cache directory.
	File         string                `yaml:"file,omitempty"`
	CommonFields map[string]string     `yaml:"commonFields,omitempty"`
	Modules      []ModuleLoggingConfig `yaml:"modules,omitempty"`
}

// ModuleLoggingConfig overrides the level of a module subtree, named in
// dot notation ("runtime.live" covers runtime.live.gemini), and tags its
// records with Fields.
type ModuleLoggingConfig struct {
	Name   string            `yaml:"name"`
	Level  string            `yaml:"level"`
	Fields map[string]string `yaml:"fields,omitempty"`
}

// DefaultLoggingConfig is info-level text.
func DefaultLoggingConfig() LoggingConfigSpec {
	return LoggingConfigSpec{DefaultLevel: LogLevelInfo, Format: LogFormatText}
}

// Validate reports every invalid field, joined.
func (c *LoggingConfigSpec) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed []string) {
		if value != "" && !slices.Contains(allowed, value) {
			errs = append(errs, &ValidationError{
				Field:   field,
				Message: "must be one of " + strings.Join(allowed, ", "),
				Value:   value,
			})
		}
	}

	oneOf("logging.defaultLevel", c.DefaultLevel, logLevels)
	oneOf("logging.format", c.Format, logFormats)

	seen := make(map[string]bool, len(c.Modules))
	for i, m := range c.Modules {
		field := fmt.Sprintf("logging.modules[%d]", i)
		switch {
		case m.Name == "":
			errs = append(errs, &ValidationError{Field: field + ".name", Message: "is required"})
		case seen[m.Name]:
			errs = append(errs, &ValidationError{Field: field + ".name", Message: "is configured twice", Value: m.Name})
		}
		seen[m.Name] = true
		oneOf(field+".level", m.Level, logLevels)
	}
	return errors.Join(errs...)
}

// ValidationError is a semantic manifest error the schema cannot catch.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("spec.%s %s", e.Field, e.Message)
	}
	return fmt.Sprintf("spec.%s %s (got %q)", e.Field, e.Message, e.Value)
}

// ToLoggerSpec converts the spec for logger.Configure.
func (c *LoggingConfigSpec) ToLoggerSpec() *logger.LoggingConfigSpec {
	if c == nil {
		return nil
	}
	out := &logger.LoggingConfigSpec{
		DefaultLevel: c.DefaultLevel,
		Format:       c.Format,
		File:         c.File,
		CommonFields: c.CommonFields,
	}
	for _, m := range c.Modules {
		out.Modules = append(out.Modules, logger.ModuleLoggingSpec{Name: m.Name, Level: m.Level, Fields: m.Fields})
	}
	return out
}
