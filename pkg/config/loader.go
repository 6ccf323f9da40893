package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Load reads, validates and decodes an assistant manifest. ${VAR}
// references are expanded from the environment before validation.
func Load(filename string) (*Assistant, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return a, nil
}

// Parse validates and decodes manifest bytes, then applies defaults.
func Parse(data []byte) (*Assistant, error) {
	data = []byte(os.ExpandEnv(string(data)))

	// Step 1: JSON Schema validation (structure, types, required fields, kind value)
	if err := ValidateAssistant(data); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var a Assistant
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Step 2: checks the schema cannot express
	if err := a.Spec.Validate(); err != nil {
		return nil, err
	}

	a.Spec.ApplyDefaults()
	return &a, nil
}

// Validate checks semantic constraints on the spec.
func (s *AssistantSpec) Validate() error {
	if s.PersonaVersion != "" {
		if err := validateSemanticVersion(s.PersonaVersion); err != nil {
			return &ValidationError{Field: "personaVersion", Message: err.Error(), Value: s.PersonaVersion}
		}
	}
	if s.Tools.Burst > 0 && s.Tools.RateLimit == 0 {
		return &ValidationError{Field: "tools.burst", Message: "requires spec.tools.rateLimit"}
	}
	if s.Transcript.Store == StoreMemory && s.Transcript.Address != "" {
		return &ValidationError{Field: "transcript.address", Message: "is only valid with the redis store", Value: s.Transcript.Address}
	}
	if s.Logging != nil {
		if err := s.Logging.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateSemanticVersion requires MAJOR.MINOR.PATCH, with or without a
// leading 'v'.
func validateSemanticVersion(version string) error {
	cleanVersion := strings.TrimPrefix(version, "v")

	// StrictNewVersion rejects "1.0" where NewVersion would complete it.
	if _, err := semver.StrictNewVersion(cleanVersion); err != nil {
		return fmt.Errorf("is not MAJOR.MINOR.PATCH: %w", err)
	}
	return nil
}
