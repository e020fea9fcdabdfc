package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for the provider.
var ErrNoAPIKey = errors.New("no API key configured")

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// envVarFor returns the environment variable holding the provider's key.
func envVarFor(provider string) string {
	if provider == "openai" {
		return "OPENAI_API_KEY"
	}
	return "ANTHROPIC_API_KEY"
}

// configKeyFor returns the key stored in the config file for the provider.
func configKeyFor(cfg *Config) string {
	if cfg == nil {
		return ""
	}
	if cfg.Provider.Name == "openai" {
		return cfg.Provider.OpenAIAPIKey
	}
	return cfg.Provider.AnthropicAPIKey
}

// GetAPIKey returns the API key for the configured provider.
// It checks in order: environment variable, config file. Bedrock
// authenticates through the AWS credential chain and needs no key.
func GetAPIKey(cfg *Config) (string, error) {
	provider := "anthropic"
	if cfg != nil && cfg.Provider.Name != "" {
		provider = cfg.Provider.Name
	}
	if provider == "bedrock" {
		return "", nil
	}

	if key := os.Getenv(envVarFor(provider)); key != "" {
		return key, nil
	}

	if key := os.ExpandEnv(configKeyFor(cfg)); key != "" && !strings.HasPrefix(key, "${") {
		return key, nil
	}

	return "", fmt.Errorf("%w for provider %s (set %s)", ErrNoAPIKey, provider, envVarFor(provider))
}

// ValidateAPIKey performs basic format validation on a provider key.
// It does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	prefix := "sk-ant-"
	if provider == "openai" {
		prefix = "sk-"
	}
	if !strings.HasPrefix(key, prefix) {
		return fmt.Errorf("invalid API key format: expected %q prefix", prefix)
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// GetAPIKeySource returns where the provider's API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	provider := "anthropic"
	if cfg != nil && cfg.Provider.Name != "" {
		provider = cfg.Provider.Name
	}

	if os.Getenv(envVarFor(provider)) != "" {
		return KeySourceEnv
	}

	if key := os.ExpandEnv(configKeyFor(cfg)); key != "" && !strings.HasPrefix(key, "${") {
		return KeySourceConfig
	}

	return KeySourceNone
}
