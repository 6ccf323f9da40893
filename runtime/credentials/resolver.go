package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultEnvVars are consulted, in order, when no key is configured.
var DefaultEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// ResolverConfig holds configuration for credential resolution.
type ResolverConfig struct {
	// APIKey is an explicit key.
	APIKey string

	// CredentialFile holds an API key.
	CredentialFile string

	// CredentialEnv names an environment variable holding an API key.
	CredentialEnv string

	// ServiceAccountFile is a Google service-account JSON key.
	ServiceAccountFile string

	// UseADC selects Google application default credentials when no key
	// is found.
	UseADC bool

	// ConfigDir is the base directory for relative file paths.
	ConfigDir string
}

// Resolve resolves credentials according to the chain:
// 1. api_key (explicit value)
// 2. credential_file (read from file)
// 3. credential_env (read from environment variable)
// 4. service account key file
// 5. GEMINI_API_KEY / GOOGLE_API_KEY
// 6. application default credentials, when enabled
//
// With nothing found it returns a NoOpCredential.
func Resolve(ctx context.Context, cfg ResolverConfig) (Credential, error) {
	apiKey, err := findAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		return NewAPIKeyCredential(apiKey), nil
	}

	if cfg.ServiceAccountFile != "" {
		return NewGoogleCredentialWithServiceAccount(ctx, resolvePath(cfg.ServiceAccountFile, cfg.ConfigDir))
	}

	if key := findDefaultEnvKey(); key != "" {
		return NewAPIKeyCredential(key), nil
	}

	if cfg.UseADC {
		return NewGoogleCredential(ctx)
	}

	return &NoOpCredential{}, nil
}

// findAPIKey searches the explicit sources in priority order.
func findAPIKey(cfg ResolverConfig) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}

	if cfg.CredentialFile != "" {
		key, err := readCredentialFile(cfg.CredentialFile, cfg.ConfigDir)
		if err != nil {
			return "", fmt.Errorf("failed to read credential file: %w", err)
		}
		return key, nil
	}

	if cfg.CredentialEnv != "" {
		key := os.Getenv(cfg.CredentialEnv)
		if key == "" {
			return "", fmt.Errorf("environment variable %s is not set", cfg.CredentialEnv)
		}
		return key, nil
	}
	return "", nil
}

func findDefaultEnvKey() string {
	for _, envVar := range DefaultEnvVars {
		if key := os.Getenv(envVar); key != "" {
			return key
		}
	}
	return ""
}

func resolvePath(path, configDir string) string {
	if filepath.IsAbs(path) || configDir == "" {
		return path
	}
	return filepath.Join(configDir, path)
}

// readCredentialFile reads a trimmed secret from a file.
func readCredentialFile(path, configDir string) (string, error) {
	//nolint:gosec // G304: File path is from trusted configuration
	data, err := os.ReadFile(resolvePath(path, configDir))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
