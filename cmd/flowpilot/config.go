package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowpilot-dev/flowpilot/internal/config"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify flowpilot configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/flowpilot/config.yaml
Project-specific overrides can be placed in .flowpilot.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			return setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKeys lists the keys shown by displayAllConfig, in display order.
var configKeys = []string{
	"provider.name",
	"provider.anthropic_api_key",
	"provider.openai_api_key",
	"provider.base_url",
	"provider.aws_region",
	"provider.aws_profile",
	"provider.max_retries",
	"provider.models.scout",
	"provider.models.builder",
	"provider.models.architect",
	"executor.max_tokens",
	"supervisor.max_tokens",
	"coordinator.max_attempts",
	"coordinator.parallel",
	"coordinator.max_concurrency",
	"coordinator.call_timeout",
	"coordinator.token_budget",
	"coordinator.cost_budget",
	"coordinator.budget_warning",
	"checkpoint.enabled",
	"checkpoint.driver",
	"checkpoint.path",
	"log.level",
	"log.json",
	"log.file",
	"tui.refresh_rate",
	"workers_file",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	fmt.Printf("\nAPI key source: %s\n", config.GetAPIKeySource(cfg))
	fmt.Printf("User config: %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("Project config: %s\n", project)
	}
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) error {
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if strings.HasSuffix(key, "_api_key") {
		value = config.MaskAPIKey(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
// API keys are masked. Unset tier models show the provider default.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "provider.name":
		return cfg.Provider.Name, nil
	case "provider.anthropic_api_key":
		return config.MaskAPIKey(cfg.Provider.AnthropicAPIKey), nil
	case "provider.openai_api_key":
		return config.MaskAPIKey(cfg.Provider.OpenAIAPIKey), nil
	case "provider.base_url":
		return cfg.Provider.BaseURL, nil
	case "provider.aws_region":
		return cfg.Provider.AWSRegion, nil
	case "provider.aws_profile":
		return cfg.Provider.AWSProfile, nil
	case "provider.max_retries":
		return strconv.Itoa(cfg.Provider.MaxRetries), nil
	case "provider.models.scout":
		return cfg.Provider.Model(models.TierScout), nil
	case "provider.models.builder":
		return cfg.Provider.Model(models.TierBuilder), nil
	case "provider.models.architect":
		return cfg.Provider.Model(models.TierArchitect), nil
	case "executor.max_tokens":
		return strconv.Itoa(cfg.Executor.MaxTokens), nil
	case "supervisor.max_tokens":
		return strconv.Itoa(cfg.Supervisor.MaxTokens), nil
	case "coordinator.max_attempts":
		return strconv.Itoa(cfg.Coordinator.MaxAttempts), nil
	case "coordinator.parallel":
		return strconv.FormatBool(cfg.Coordinator.Parallel), nil
	case "coordinator.max_concurrency":
		return strconv.Itoa(cfg.Coordinator.MaxConcurrency), nil
	case "coordinator.call_timeout":
		return cfg.Coordinator.CallTimeout.String(), nil
	case "coordinator.token_budget":
		return strconv.FormatInt(cfg.Coordinator.TokenBudget, 10), nil
	case "coordinator.cost_budget":
		return strconv.FormatFloat(cfg.Coordinator.CostBudget, 'f', -1, 64), nil
	case "coordinator.budget_warning":
		return strconv.FormatFloat(cfg.Coordinator.BudgetWarning, 'f', -1, 64), nil
	case "checkpoint.enabled":
		return strconv.FormatBool(cfg.Checkpoint.Enabled), nil
	case "checkpoint.driver":
		return cfg.Checkpoint.Driver, nil
	case "checkpoint.path":
		return cfg.Checkpoint.Path, nil
	case "log.level":
		return cfg.Log.Level, nil
	case "log.json":
		return strconv.FormatBool(cfg.Log.JSON), nil
	case "log.file":
		return cfg.Log.File, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	case "workers_file":
		return cfg.WorkersFile, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "provider.name":
		cfg.Provider.Name = value
	case "provider.anthropic_api_key":
		cfg.Provider.AnthropicAPIKey = value
	case "provider.openai_api_key":
		cfg.Provider.OpenAIAPIKey = value
	case "provider.base_url":
		cfg.Provider.BaseURL = value
	case "provider.aws_region":
		cfg.Provider.AWSRegion = value
	case "provider.aws_profile":
		cfg.Provider.AWSProfile = value
	case "provider.max_retries":
		return setInt(&cfg.Provider.MaxRetries, key, value)
	case "provider.models.scout":
		cfg.Provider.Models.Scout = value
	case "provider.models.builder":
		cfg.Provider.Models.Builder = value
	case "provider.models.architect":
		cfg.Provider.Models.Architect = value
	case "executor.max_tokens":
		return setInt(&cfg.Executor.MaxTokens, key, value)
	case "supervisor.max_tokens":
		return setInt(&cfg.Supervisor.MaxTokens, key, value)
	case "coordinator.max_attempts":
		return setInt(&cfg.Coordinator.MaxAttempts, key, value)
	case "coordinator.parallel":
		return setBool(&cfg.Coordinator.Parallel, key, value)
	case "coordinator.max_concurrency":
		return setInt(&cfg.Coordinator.MaxConcurrency, key, value)
	case "coordinator.call_timeout":
		return setDuration(&cfg.Coordinator.CallTimeout, key, value)
	case "coordinator.token_budget":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		cfg.Coordinator.TokenBudget = n
	case "coordinator.cost_budget":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		cfg.Coordinator.CostBudget = f
	case "coordinator.budget_warning":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		cfg.Coordinator.BudgetWarning = f
	case "checkpoint.enabled":
		return setBool(&cfg.Checkpoint.Enabled, key, value)
	case "checkpoint.driver":
		cfg.Checkpoint.Driver = value
	case "checkpoint.path":
		cfg.Checkpoint.Path = value
	case "log.level":
		cfg.Log.Level = value
	case "log.json":
		return setBool(&cfg.Log.JSON, key, value)
	case "log.file":
		cfg.Log.File = value
	case "tui.refresh_rate":
		return setDuration(&cfg.TUI.RefreshRate, key, value)
	case "workers_file":
		cfg.WorkersFile = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	*dst = d
	return nil
}
