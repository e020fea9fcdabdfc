package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flowpilot-dev/flowpilot/internal/api"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Provider.Name != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %q", cfg.Provider.Name)
	}
	if cfg.Executor.MaxTokens != 4096 {
		t.Errorf("expected executor max tokens 4096, got %d", cfg.Executor.MaxTokens)
	}
	if cfg.Supervisor.MaxTokens != 500 {
		t.Errorf("expected supervisor max tokens 500, got %d", cfg.Supervisor.MaxTokens)
	}
	if cfg.Coordinator.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", cfg.Coordinator.MaxAttempts)
	}
	if cfg.Coordinator.Parallel {
		t.Error("expected sequential mode by default")
	}
	if cfg.Coordinator.CallTimeout != 2*time.Minute {
		t.Errorf("expected call timeout 2m, got %v", cfg.Coordinator.CallTimeout)
	}
	if cfg.Coordinator.BudgetWarning != 0.8 {
		t.Errorf("expected budget warning 0.8, got %v", cfg.Coordinator.BudgetWarning)
	}
	if cfg.Checkpoint.Driver != "sqlite" || !cfg.Checkpoint.Enabled {
		t.Errorf("unexpected checkpoint defaults: %+v", cfg.Checkpoint)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
provider:
  name: openai
  openai_api_key: sk-test-key
  models:
    builder: gpt-4o
executor:
  max_tokens: 2048
coordinator:
  max_attempts: 5
  parallel: true
  call_timeout: 30s
  cost_budget: 1.5
  budget_warning: 0.5
checkpoint:
  driver: sqlite3
log:
  level: debug
  json: true
tui:
  refresh_rate: 200ms
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Provider.Name != "openai" || cfg.Provider.OpenAIAPIKey != "sk-test-key" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.Models.Builder != "gpt-4o" {
		t.Errorf("builder model = %q, want gpt-4o", cfg.Provider.Models.Builder)
	}
	if got := cfg.Provider.Model(models.TierScout); got != api.ModelGPT4oMini {
		t.Errorf("unset scout model = %q, want openai default %q", got, api.ModelGPT4oMini)
	}
	if cfg.Executor.MaxTokens != 2048 {
		t.Errorf("executor max tokens = %d, want 2048", cfg.Executor.MaxTokens)
	}
	if cfg.Supervisor.MaxTokens != 500 {
		t.Errorf("supervisor max tokens = %d, want default 500", cfg.Supervisor.MaxTokens)
	}
	if cfg.Coordinator.MaxAttempts != 5 || !cfg.Coordinator.Parallel {
		t.Errorf("coordinator = %+v", cfg.Coordinator)
	}
	if cfg.Coordinator.CallTimeout != 30*time.Second {
		t.Errorf("call timeout = %v, want 30s", cfg.Coordinator.CallTimeout)
	}
	if cfg.Coordinator.CostBudget != 1.5 {
		t.Errorf("cost budget = %v, want 1.5", cfg.Coordinator.CostBudget)
	}
	if cfg.Coordinator.BudgetWarning != 0.5 {
		t.Errorf("budget warning = %v, want 0.5", cfg.Coordinator.BudgetWarning)
	}
	if cfg.Checkpoint.Driver != "sqlite3" {
		t.Errorf("checkpoint driver = %q, want sqlite3", cfg.Checkpoint.Driver)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.TUI.RefreshRate != 200*time.Millisecond {
		t.Errorf("refresh rate = %v, want 200ms", cfg.TUI.RefreshRate)
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("coordinator:\n  max_attempts: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("FLOWPILOT_COORDINATOR_MAX_ATTEMPTS", "7")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Coordinator.MaxAttempts != 7 {
		t.Errorf("max attempts = %d, want 7 from env", cfg.Coordinator.MaxAttempts)
	}
	if cfg.Provider.AnthropicAPIKey != "sk-ant-from-env" {
		t.Errorf("anthropic key = %q, want value from env", cfg.Provider.AnthropicAPIKey)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"unknown provider", "provider:\n  name: cohere\n", "provider.name"},
		{"zero attempts", "coordinator:\n  max_attempts: 0\n", "max_attempts"},
		{"bad driver", "checkpoint:\n  driver: postgres\n", "checkpoint.driver"},
		{"negative budget", "coordinator:\n  token_budget: -1\n", "budgets"},
		{"budget warning above one", "coordinator:\n  budget_warning: 1.5\n", "budget_warning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			_, err := LoadFromPath(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("LoadFromPath() error = %v, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestSaveToPath_RoundTrip(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Coordinator.MaxConcurrency = 8
	cfg.Coordinator.CallTimeout = 45 * time.Second
	cfg.Coordinator.BudgetWarning = 0.65
	cfg.WorkersFile = "workers.yaml"
	if err := SaveToPath(cfg, path); err != nil {
		t.Fatalf("SaveToPath failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Coordinator.MaxConcurrency != 8 || loaded.Coordinator.CallTimeout != 45*time.Second {
		t.Errorf("coordinator = %+v", loaded.Coordinator)
	}
	if loaded.Coordinator.BudgetWarning != 0.65 {
		t.Errorf("budget warning = %v, want 0.65", loaded.Coordinator.BudgetWarning)
	}
	if loaded.WorkersFile != "workers.yaml" {
		t.Errorf("workers file = %q", loaded.WorkersFile)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	if got := expandEnv("${TEST_VAR}"); got != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", got)
	}
	if got := expandEnv("prefix-${TEST_VAR}-suffix"); got != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if dir := getUserConfigDir(); dir != "/custom/config/flowpilot" {
		t.Errorf("expected /custom/config/flowpilot, got %q", dir)
	}
}

func TestTierModelsGet(t *testing.T) {
	m := TierModels{Scout: "s", Builder: "b", Architect: "a"}
	tests := []struct {
		tier models.Tier
		want string
	}{
		{models.TierScout, "s"},
		{models.TierBuilder, "b"},
		{models.TierArchitect, "a"},
		{models.Tier("unknown"), "b"},
	}
	for _, tt := range tests {
		if got := m.Get(tt.tier); got != tt.want {
			t.Errorf("Get(%q) = %q, want %q", tt.tier, got, tt.want)
		}
	}
}

func TestProviderConfigModel(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderConfig
		tier     models.Tier
		want     string
	}{
		{"anthropic scout default", ProviderConfig{Name: "anthropic"}, models.TierScout, api.ModelHaiku},
		{"bedrock architect default", ProviderConfig{Name: "bedrock"}, models.TierArchitect, api.ModelOpus},
		{"openai scout default", ProviderConfig{Name: "openai"}, models.TierScout, api.ModelGPT4oMini},
		{"openai builder default", ProviderConfig{Name: "openai"}, models.TierBuilder, api.ModelGPT4o},
		{"openai architect default", ProviderConfig{Name: "openai"}, models.TierArchitect, api.ModelGPT41},
		{
			name:     "configured model wins",
			provider: ProviderConfig{Name: "openai", Models: TierModels{Architect: "o3"}},
			tier:     models.TierArchitect,
			want:     "o3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.provider.Model(tt.tier); got != tt.want {
				t.Errorf("Model(%s) = %q, want %q", tt.tier, got, tt.want)
			}
		})
	}
}
