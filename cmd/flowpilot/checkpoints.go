package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	checkpointsJSON   bool
	checkpointsOutput bool
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints <workflow-id>",
	Short: "List the checkpoints recorded for a workflow",
	Long: `List the checkpoints recorded for a workflow, oldest first.

A checkpoint is written after every successful task execution and is named
task_<task-id>_<worker-id>.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckpoints,
}

func init() {
	checkpointsCmd.Flags().BoolVar(&checkpointsJSON, "json", false, "Print checkpoints as JSON")
	checkpointsCmd.Flags().BoolVar(&checkpointsOutput, "output", false, "Include each step's output")
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}

	path := stateDBPath(cfg, root)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No checkpoints recorded yet. Run 'flowpilot run <batch-file>' to start.")
		return nil
	}

	db, err := openStateDB(cfg, root)
	if err != nil {
		return err
	}
	defer db.Close()

	checkpoints, err := db.ListCheckpoints(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}

	if checkpointsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(checkpoints)
	}

	if len(checkpoints) == 0 {
		fmt.Printf("No checkpoints for workflow %s\n", args[0])
		return nil
	}

	var tokens int64
	var cost float64
	for _, cp := range checkpoints {
		tokens += cp.TokensUsedInStep
		cost += cp.CostUSDInStep
		fmt.Printf("%s  %-40s %8d tokens  $%.6f\n",
			cp.CreatedAt.Local().Format("2006-01-02 15:04:05"), cp.CheckpointName, cp.TokensUsedInStep, cp.CostUSDInStep)
		if checkpointsOutput {
			if out, ok := cp.StateSnapshot["output"].(string); ok && out != "" {
				fmt.Printf("    %s\n", indent(out, "    "))
			}
		}
	}
	fmt.Printf("\n%d checkpoints, %d tokens, $%.6f\n", len(checkpoints), tokens, cost)
	return nil
}
