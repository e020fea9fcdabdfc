package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/flowpilot-dev/flowpilot/internal/agent"
	"github.com/flowpilot-dev/flowpilot/internal/api"
	"github.com/flowpilot-dev/flowpilot/internal/config"
	"github.com/flowpilot-dev/flowpilot/internal/logging"
	"github.com/flowpilot-dev/flowpilot/internal/state"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// loadConfig loads the configuration from --config or the default search.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// newLogger builds the logger for a command. When toFile is set and no log
// file is configured, output goes to .flowpilot/logs/flowpilot.log so it
// does not corrupt a full-screen view.
func newLogger(cfg *config.Config, projectRoot string, toFile bool) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	lc.Level = logging.Level(cfg.Log.Level)
	lc.JSON = cfg.Log.JSON
	lc.File = cfg.Log.File
	if verbose {
		lc.Level = logging.DebugLevel
	}
	if toFile && lc.File == "" {
		lc.File = filepath.Join(projectRoot, ".flowpilot", "logs", "flowpilot.log")
	}
	return logging.New(lc)
}

// tierModels returns the model for each tier, falling back to the
// provider's defaults.
func tierModels(cfg *config.Config) map[models.Tier]string {
	out := make(map[models.Tier]string, 3)
	for _, tier := range []models.Tier{models.TierScout, models.TierBuilder, models.TierArchitect} {
		out[tier] = cfg.Provider.Model(tier)
	}
	return out
}

// buildRegistry returns the default worker catalog extended by the
// configured workers file.
func buildRegistry(cfg *config.Config) (*agent.Registry, error) {
	tm := tierModels(cfg)
	workers := agent.DefaultWorkers(tm)
	if cfg.WorkersFile != "" {
		extra, err := agent.LoadWorkersFile(cfg.WorkersFile, tm)
		if err != nil {
			return nil, err
		}
		workers = append(workers, extra...)
	}
	return agent.NewRegistry(workers...)
}

// newCompleter creates the model backend for the configured provider.
func newCompleter(cfg *config.Config) (api.Completer, error) {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		if errors.Is(err, config.ErrNoAPIKey) {
			return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or OPENAI_API_KEY, or provider keys in the config file", err)
		}
		return nil, err
	}

	retry := api.DefaultRetryConfig()
	if cfg.Provider.MaxRetries >= 0 {
		retry.MaxRetries = uint64(cfg.Provider.MaxRetries)
	}

	pc := api.ProviderConfig{
		Name:       cfg.Provider.Name,
		Model:      cfg.Provider.Model(models.TierBuilder),
		BaseURL:    cfg.Provider.BaseURL,
		AWSRegion:  cfg.Provider.AWSRegion,
		AWSProfile: cfg.Provider.AWSProfile,
		Retry:      retry,
	}
	if cfg.Provider.Name == api.ProviderOpenAI {
		pc.OpenAIKey = key
	} else {
		pc.AnthropicKey = key
	}
	return api.New(pc)
}

// stateDBPath returns the configured database path, the shared one when
// --global-db is set, or the project-local one.
func stateDBPath(cfg *config.Config, projectRoot string) string {
	if cfg.Checkpoint.Path != "" {
		return cfg.Checkpoint.Path
	}
	if globalDB {
		return state.GlobalDBPath()
	}
	return state.ProjectDBPath(projectRoot)
}

// openStateDB opens and migrates the state database.
func openStateDB(cfg *config.Config, projectRoot string) (*state.DB, error) {
	db, err := state.OpenWithDriver(cfg.Checkpoint.Driver, stateDBPath(cfg, projectRoot))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// printStatus prints a status line with color.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// projectRoot returns the working directory.
func projectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}
