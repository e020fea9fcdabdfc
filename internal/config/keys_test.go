package config

import (
	"errors"
	"testing"
)

func TestGetAPIKey(t *testing.T) {
	t.Run("anthropic from environment variable", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		key, err := GetAPIKey(&Config{})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-test-key" {
			t.Errorf("expected 'sk-ant-test-key', got %q", key)
		}
	})

	t.Run("anthropic from config", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{Provider: ProviderConfig{Name: "anthropic", AnthropicAPIKey: "sk-ant-config-key"}}
		key, err := GetAPIKey(cfg)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-config-key" {
			t.Errorf("expected 'sk-ant-config-key', got %q", key)
		}
	})

	t.Run("openai uses its own variable", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-wrong")
		t.Setenv("OPENAI_API_KEY", "sk-openai-key")

		key, err := GetAPIKey(&Config{Provider: ProviderConfig{Name: "openai"}})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-openai-key" {
			t.Errorf("expected 'sk-openai-key', got %q", key)
		}
	})

	t.Run("bedrock needs no key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		key, err := GetAPIKey(&Config{Provider: ProviderConfig{Name: "bedrock"}})
		if err != nil || key != "" {
			t.Errorf("GetAPIKey(bedrock) = %q, %v; want empty, nil", key, err)
		}
	})

	t.Run("unexpanded reference is not a key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{Provider: ProviderConfig{Name: "anthropic", AnthropicAPIKey: "${UNSET_FLOWPILOT_KEY}"}}
		if _, err := GetAPIKey(cfg); !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		if _, err := GetAPIKey(&Config{}); !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantErr  bool
	}{
		{"valid anthropic key", "anthropic", "sk-ant-REDACTED", false},
		{"empty key", "anthropic", "", true},
		{"wrong prefix", "anthropic", "sk-proj-abcdefghijklmnopqrst", true},
		{"too short", "anthropic", "sk-ant-abc", true},
		{"valid openai key", "openai", "sk-proj-abcdefghijklmnopqrst", false},
		{"openai wrong prefix", "openai", "pk-abcdefghijklmnopqrstuv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.provider, tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q, %q) error = %v, wantErr %v", tt.provider, tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-ant-REDACTED", "sk-ant-...mnop"},
	}

	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestGetAPIKeySource(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
		if got := GetAPIKeySource(&Config{}); got != KeySourceEnv {
			t.Errorf("GetAPIKeySource() = %q, want %q", got, KeySourceEnv)
		}
	})

	t.Run("config file", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		cfg := &Config{Provider: ProviderConfig{AnthropicAPIKey: "sk-ant-file"}}
		if got := GetAPIKeySource(cfg); got != KeySourceConfig {
			t.Errorf("GetAPIKeySource() = %q, want %q", got, KeySourceConfig)
		}
	})

	t.Run("none", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		if got := GetAPIKeySource(nil); got != KeySourceNone {
			t.Errorf("GetAPIKeySource() = %q, want %q", got, KeySourceNone)
		}
	})
}
