// Package config handles configuration loading and management for flowpilot.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/flowpilot-dev/flowpilot/internal/api"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// Config holds all configuration for flowpilot.
type Config struct {
	Provider    ProviderConfig    `mapstructure:"provider"`
	Executor    ExecutorConfig    `mapstructure:"executor"`
	Supervisor  SupervisorConfig  `mapstructure:"supervisor"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Checkpoint  CheckpointConfig  `mapstructure:"checkpoint"`
	Log         LogConfig         `mapstructure:"log"`
	TUI         TUIConfig         `mapstructure:"tui"`
	// WorkersFile is an optional YAML file that adds or overrides workers.
	WorkersFile string `mapstructure:"workers_file"`
}

// ProviderConfig selects the text-generation backend.
type ProviderConfig struct {
	// Name is anthropic, bedrock or openai.
	Name            string `mapstructure:"name"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	BaseURL         string `mapstructure:"base_url"`
	AWSRegion       string `mapstructure:"aws_region"`
	AWSProfile      string `mapstructure:"aws_profile"`
	MaxRetries      int    `mapstructure:"max_retries"`
	// Models maps tier names to model identifiers. Empty entries use the
	// provider's defaults.
	Models TierModels `mapstructure:"models"`
}

// Model returns the model for tier: the configured one, or the provider's
// default when none is set.
func (p ProviderConfig) Model(tier models.Tier) string {
	if m := p.Models.Get(tier); m != "" {
		return m
	}
	if m, ok := api.DefaultTierModels(p.Name)[tier]; ok {
		return m
	}
	return api.DefaultTierModels(p.Name)[models.TierBuilder]
}

// TierModels holds the model used for each worker tier.
type TierModels struct {
	Scout     string `mapstructure:"scout"`
	Builder   string `mapstructure:"builder"`
	Architect string `mapstructure:"architect"`
}

// Get returns the model for the given tier, defaulting to the builder model.
func (m TierModels) Get(tier models.Tier) string {
	switch tier {
	case models.TierScout:
		return m.Scout
	case models.TierArchitect:
		return m.Architect
	default:
		return m.Builder
	}
}

// ExecutorConfig holds task executor settings.
type ExecutorConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

// SupervisorConfig holds supervisor review settings.
type SupervisorConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

// CoordinatorConfig holds run-level coordination settings.
type CoordinatorConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Parallel       bool          `mapstructure:"parallel"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	// TokenBudget of zero means unlimited.
	TokenBudget int64 `mapstructure:"token_budget"`
	// CostBudget in USD; zero means unlimited.
	CostBudget float64 `mapstructure:"cost_budget"`
	// BudgetWarning is the used fraction (0..1) of either budget at which
	// a warning is logged.
	BudgetWarning float64 `mapstructure:"budget_warning"`
}

// CheckpointConfig selects the checkpoint database.
type CheckpointConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	// Path of the database; empty uses the project-local database.
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, FLOWPILOT_*)
// 2. Project config (.flowpilot.yaml in current directory or parent)
// 3. User config (~/.config/flowpilot/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file on top of defaults.
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Provider.AnthropicAPIKey = expandEnv(cfg.Provider.AnthropicAPIKey)
	cfg.Provider.OpenAIAPIKey = expandEnv(cfg.Provider.OpenAIAPIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnv maps environment variables onto config keys.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("FLOWPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("provider.anthropic_api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("provider.openai_api_key", "OPENAI_API_KEY")
}

// Validate checks value ranges that would otherwise surface mid-run.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "anthropic", "bedrock", "openai":
	default:
		return fmt.Errorf("invalid provider.name %q: expected anthropic, bedrock or openai", c.Provider.Name)
	}
	if c.Coordinator.MaxAttempts < 1 {
		return fmt.Errorf("coordinator.max_attempts must be at least 1, got %d", c.Coordinator.MaxAttempts)
	}
	if c.Coordinator.MaxConcurrency < 1 {
		return fmt.Errorf("coordinator.max_concurrency must be at least 1, got %d", c.Coordinator.MaxConcurrency)
	}
	if c.Executor.MaxTokens < 1 || c.Supervisor.MaxTokens < 1 {
		return errors.New("executor.max_tokens and supervisor.max_tokens must be positive")
	}
	if c.Coordinator.TokenBudget < 0 || c.Coordinator.CostBudget < 0 {
		return errors.New("coordinator budgets must not be negative")
	}
	if c.Coordinator.BudgetWarning < 0 || c.Coordinator.BudgetWarning > 1 {
		return fmt.Errorf("coordinator.budget_warning must be between 0 and 1, got %v", c.Coordinator.BudgetWarning)
	}
	switch c.Checkpoint.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("invalid checkpoint.driver %q: expected sqlite or sqlite3", c.Checkpoint.Driver)
	}
	return nil
}

// Save writes the configuration to the user config file.
// API keys are only written when they were set explicitly.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveToPath(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveToPath writes the configuration to path.
func SaveToPath(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	if cfg.Provider.AnthropicAPIKey != "" {
		v.Set("provider.anthropic_api_key", cfg.Provider.AnthropicAPIKey)
	}
	if cfg.Provider.OpenAIAPIKey != "" {
		v.Set("provider.openai_api_key", cfg.Provider.OpenAIAPIKey)
	}
	v.Set("provider.name", cfg.Provider.Name)
	v.Set("provider.base_url", cfg.Provider.BaseURL)
	v.Set("provider.aws_region", cfg.Provider.AWSRegion)
	v.Set("provider.aws_profile", cfg.Provider.AWSProfile)
	v.Set("provider.max_retries", cfg.Provider.MaxRetries)
	v.Set("provider.models.scout", cfg.Provider.Models.Scout)
	v.Set("provider.models.builder", cfg.Provider.Models.Builder)
	v.Set("provider.models.architect", cfg.Provider.Models.Architect)
	v.Set("executor.max_tokens", cfg.Executor.MaxTokens)
	v.Set("supervisor.max_tokens", cfg.Supervisor.MaxTokens)
	v.Set("coordinator.max_attempts", cfg.Coordinator.MaxAttempts)
	v.Set("coordinator.parallel", cfg.Coordinator.Parallel)
	v.Set("coordinator.max_concurrency", cfg.Coordinator.MaxConcurrency)
	v.Set("coordinator.call_timeout", cfg.Coordinator.CallTimeout.String())
	v.Set("coordinator.token_budget", cfg.Coordinator.TokenBudget)
	v.Set("coordinator.cost_budget", cfg.Coordinator.CostBudget)
	v.Set("coordinator.budget_warning", cfg.Coordinator.BudgetWarning)
	v.Set("checkpoint.enabled", cfg.Checkpoint.Enabled)
	v.Set("checkpoint.driver", cfg.Checkpoint.Driver)
	v.Set("checkpoint.path", cfg.Checkpoint.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.json", cfg.Log.JSON)
	v.Set("log.file", cfg.Log.File)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())
	v.Set("workers_file", cfg.WorkersFile)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("provider.name", d.Provider.Name)
	v.SetDefault("provider.anthropic_api_key", "")
	v.SetDefault("provider.openai_api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.aws_region", "")
	v.SetDefault("provider.aws_profile", "")
	v.SetDefault("provider.max_retries", d.Provider.MaxRetries)
	v.SetDefault("provider.models.scout", "")
	v.SetDefault("provider.models.builder", "")
	v.SetDefault("provider.models.architect", "")

	v.SetDefault("executor.max_tokens", d.Executor.MaxTokens)
	v.SetDefault("supervisor.max_tokens", d.Supervisor.MaxTokens)

	v.SetDefault("coordinator.max_attempts", d.Coordinator.MaxAttempts)
	v.SetDefault("coordinator.parallel", d.Coordinator.Parallel)
	v.SetDefault("coordinator.max_concurrency", d.Coordinator.MaxConcurrency)
	v.SetDefault("coordinator.call_timeout", d.Coordinator.CallTimeout.String())
	v.SetDefault("coordinator.token_budget", d.Coordinator.TokenBudget)
	v.SetDefault("coordinator.cost_budget", d.Coordinator.CostBudget)
	v.SetDefault("coordinator.budget_warning", d.Coordinator.BudgetWarning)

	v.SetDefault("checkpoint.enabled", d.Checkpoint.Enabled)
	v.SetDefault("checkpoint.driver", d.Checkpoint.Driver)
	v.SetDefault("checkpoint.path", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")

	v.SetDefault("tui.refresh_rate", d.TUI.RefreshRate.String())
	v.SetDefault("workers_file", "")
}

// getUserConfigDir returns the XDG config directory for flowpilot.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "flowpilot")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "flowpilot")
	}
	return filepath.Join(home, ".config", "flowpilot")
}

// findProjectConfig searches for .flowpilot.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".flowpilot.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:       "anthropic",
			MaxRetries: 3,
		},
		Executor:   ExecutorConfig{MaxTokens: 4096},
		Supervisor: SupervisorConfig{MaxTokens: 500},
		Coordinator: CoordinatorConfig{
			MaxAttempts:    3,
			MaxConcurrency: 4,
			CallTimeout:    2 * time.Minute,
			BudgetWarning:  0.8,
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
			Driver:  "sqlite",
		},
		Log: LogConfig{Level: "info"},
		TUI: TUIConfig{RefreshRate: 100 * time.Millisecond},
	}
}
