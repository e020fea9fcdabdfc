package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	globalDB   bool
)

var rootCmd = &cobra.Command{
	Use:   "flowpilot",
	Short: "Multi-agent task coordinator",
	Long: `flowpilot runs batches of tasks across specialist workers.

Each task is routed to a worker (email, CRM, calendar, messaging, data, or
the general director), executed by a language model, and reviewed by a
supervisor that decides to continue, retry, escalate, skip, or abort.
Tasks run in dependency order, and every step is checkpointed.

Configuration is read from ~/.config/flowpilot/config.yaml and an optional
project-level .flowpilot.yaml.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (overrides the default search)")
	rootCmd.PersistentFlags().BoolVar(&globalDB, "global-db", false, "Use the shared state database under $XDG_DATA_HOME instead of the project one")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
