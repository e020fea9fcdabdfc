package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flowpilot-dev/flowpilot/internal/state"
)

var (
	runsWorkflow string
	runsLimit    int
	runsJSON     bool
	runsPurge    time.Duration
	runsID       string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent runs",
	Long: `Show recent runs, newest first, with their outcome and totals.

Use --id to show one run, or --purge to delete runs older than the given
age, for example --purge 720h.`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsWorkflow, "workflow", "", "Only show runs of this workflow")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "Maximum number of runs to show (0 for all)")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Print runs as JSON")
	runsCmd.Flags().StringVar(&runsID, "id", "", "Show a single run by ID")
	runsCmd.Flags().DurationVar(&runsPurge, "purge", 0, "Delete runs older than this age")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}

	if _, err := os.Stat(stateDBPath(cfg, root)); os.IsNotExist(err) {
		fmt.Println("No runs recorded yet. Run 'flowpilot run <batch-file>' to start.")
		return nil
	}

	db, err := openStateDB(cfg, root)
	if err != nil {
		return err
	}
	defer db.Close()

	if runsPurge > 0 {
		n, err := db.PurgeOldRuns(runsPurge)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		printStatus("✓", fmt.Sprintf("Deleted %d runs older than %s", n, runsPurge), color.FgGreen)
		return nil
	}

	var runs []state.Run
	if runsID != "" {
		r, err := db.GetRun(cmd.Context(), runsID)
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}
		if r == nil {
			return fmt.Errorf("run %s not found", runsID)
		}
		runs = append(runs, *r)
	} else {
		runs, err = db.ListRuns(cmd.Context(), runsWorkflow, runsLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
	}

	if runsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	now := time.Now()
	for _, r := range runs {
		symbol, attr, line := runLine(r, now)
		printStatus(symbol, line, attr)
		for _, id := range r.FailedTasks {
			fmt.Printf("    %s: %s\n", id, r.TaskErrors[id])
		}
	}
	return nil
}

// runLine returns the status symbol, its color and the summary line for r.
func runLine(r state.Run, now time.Time) (string, color.Attribute, string) {
	symbol, attr := "✓", color.FgGreen
	if !r.Success {
		symbol, attr = "✗", color.FgRed
	}
	line := fmt.Sprintf("%s  %s  %d completed, %d failed, %d tokens, $%.4f (%s ago)",
		r.ID, r.WorkflowID, len(r.CompletedTasks), len(r.FailedTasks),
		r.TotalTokens, r.TotalCost, formatDuration(now.Sub(r.StartedAt)))
	return symbol, attr, line
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}

// indent prefixes every line after the first with prefix.
func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
