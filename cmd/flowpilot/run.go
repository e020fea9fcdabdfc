package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/flowpilot-dev/flowpilot/internal/agent"
	"github.com/flowpilot-dev/flowpilot/internal/api"
	"github.com/flowpilot-dev/flowpilot/internal/batch"
	"github.com/flowpilot-dev/flowpilot/internal/orchestrator"
	"github.com/flowpilot-dev/flowpilot/internal/signals"
	"github.com/flowpilot-dev/flowpilot/internal/state"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

var (
	runWorkflowID    string
	runParallel      bool
	runConcurrency   int
	runTUI           bool
	runJSON          bool
	runNoCheckpoints bool
)

// checkpointDrainTimeout bounds how long run waits for queued checkpoints.
const checkpointDrainTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run <batch-file>",
	Short: "Run a batch of tasks",
	Long: `Run every task in a batch file, in dependency order.

The batch file is YAML or JSON: either a list of tasks or a mapping with
an optional workflow_id and a tasks list. Each task has an id and may set
name, description, integration, type, agent, input, depends_on and
expected_output.

Each task is routed to a worker, executed, and reviewed by the supervisor,
which may accept, retry (at most coordinator.max_attempts times), escalate
to another worker, skip, or abort the task. Tasks whose dependencies did
not complete fail without running.

The run stops early on Ctrl+C or when a file named "stop" appears in
.flowpilot/signals/.

Exit status is non-zero when any task failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVar(&runWorkflowID, "workflow-id", "", "Workflow ID for checkpoints (default: batch workflow_id or a new UUID)")
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "Run independent tasks concurrently")
	runCmd.Flags().IntVar(&runConcurrency, "max-concurrency", 0, "Maximum concurrent tasks in parallel mode (default: coordinator.max_concurrency)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show a live full-screen view of the run")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run result as JSON")
	runCmd.Flags().BoolVar(&runNoCheckpoints, "no-checkpoints", false, "Do not record checkpoints or the run summary")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	b, err := batch.Load(args[0])
	if err != nil {
		return err
	}
	workflowID := runWorkflowID
	if workflowID == "" {
		workflowID = b.WorkflowID
	}
	if workflowID == "" {
		workflowID = uuid.NewString()
	}

	root, err := projectRoot()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, root, runTUI)
	if err != nil {
		return err
	}
	defer logger.Close()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build worker registry: %w", err)
	}
	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}
	metered, _ := completer.(api.Metered)
	if metered != nil {
		logger.Info("provider ready", "provider", cfg.Provider.Name, "model", metered.Model(), "workers", registry.Len())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := signals.New(signals.Dir(root), logger.Logger)
	if err != nil {
		logger.Warn("stop signals disabled", "err", err)
	} else {
		defer watcher.Close()
		var cancelWatch context.CancelFunc
		ctx, cancelWatch = watcher.WatchContext(ctx)
		defer cancelWatch()
	}
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	execOpts := []agent.ExecutorOption{
		agent.WithExecutorMaxTokens(cfg.Executor.MaxTokens),
		agent.WithExecutorLogger(logger.Logger),
	}
	coordOpts := []orchestrator.Option{
		orchestrator.WithMaxAttempts(cfg.Coordinator.MaxAttempts),
		orchestrator.WithCallTimeout(cfg.Coordinator.CallTimeout),
		orchestrator.WithBudget(cfg.Coordinator.TokenBudget, cfg.Coordinator.CostBudget),
		orchestrator.WithBudgetWarning(cfg.Coordinator.BudgetWarning),
		orchestrator.WithLogger(logger.Logger),
	}
	if runParallel || cfg.Coordinator.Parallel {
		concurrency := cfg.Coordinator.MaxConcurrency
		if runConcurrency > 0 {
			concurrency = runConcurrency
		}
		coordOpts = append(coordOpts, orchestrator.WithParallel(concurrency))
	}

	if cfg.Checkpoint.Enabled && !runNoCheckpoints {
		db, err := openStateDB(cfg, root)
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
		defer db.Close()

		checkpointer := state.NewAsyncCheckpointer(db, logger.Logger, state.DefaultCheckpointQueueSize)
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), checkpointDrainTimeout)
			defer cancel()
			if err := checkpointer.Close(drainCtx); err != nil {
				logger.Warn("checkpoints not fully written", "err", err)
			}
			if written, failed, dropped := checkpointer.Stats(); failed > 0 || dropped > 0 {
				logger.Warn("checkpoint problems", "written", written, "failed", failed, "dropped", dropped)
			}
		}()

		execOpts = append(execOpts, agent.WithCheckpoints(checkpointer))
		coordOpts = append(coordOpts, orchestrator.WithRunRecorder(db))
	}

	supervisorWorker, _ := registry.Get(agent.WorkerSupervisor)
	executor := agent.NewExecutor(completer, execOpts...)
	supervisor := agent.NewSupervisor(completer, supervisorWorker,
		agent.WithSupervisorMaxTokens(cfg.Supervisor.MaxTokens),
		agent.WithSupervisorLogger(logger.Logger))

	var (
		res    *models.RunResult
		runErr error
	)
	if runTUI {
		emitter := orchestrator.NewEventEmitter(256, logger.Logger)
		coordOpts = append(coordOpts, orchestrator.WithEventEmitter(emitter))
		coord := orchestrator.NewCoordinator(registry, executor, supervisor, coordOpts...)
		res, runErr = runWithTUI(ctx, cancelRun, coord, emitter, cfg.TUI.RefreshRate, workflowID, b.Tasks)
		if dropped := emitter.DroppedCount(); dropped > 0 {
			logger.Warn("view missed events", "dropped", dropped)
		}
	} else {
		coord := orchestrator.NewCoordinator(registry, executor, supervisor, coordOpts...)
		res, runErr = coord.ExecuteWorkflow(ctx, workflowID, b.Tasks)
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		printSummary(res, b.Tasks)
		if metered != nil {
			fmt.Println(providerUsage(metered))
		}
	}
	if metered != nil {
		in, out := metered.Tracker().Total()
		logger.Info("provider usage", "model", metered.Model(), "calls", metered.Tracker().Calls(), "input_tokens", in, "output_tokens", out)
	}

	if runErr != nil {
		if orchestrator.IsBatchError(runErr) {
			return fmt.Errorf("invalid batch %s: %w", args[0], runErr)
		}
		return runErr
	}
	if !res.Success {
		return fmt.Errorf("%d of %d tasks failed", len(res.FailedTasks), len(b.Tasks))
	}
	return nil
}

// printSummary prints one line per task in batch order, then the totals.
func printSummary(res *models.RunResult, tasks []*models.Task) {
	fmt.Printf("\nWorkflow %s (run %s)\n\n", res.WorkflowID, res.RunID)

	failed := make(map[string]bool, len(res.FailedTasks))
	for _, id := range res.FailedTasks {
		failed[id] = true
	}

	for _, t := range tasks {
		attempts := len(res.Attempts[t.ID])
		switch {
		case failed[t.ID]:
			printStatus("✗", fmt.Sprintf("%s: %s", t.ID, res.TaskErrors[t.ID]), color.FgRed)
		case isSkipped(res.Results[t.ID]):
			printStatus("↷", fmt.Sprintf("%s skipped (%d attempts)", t.ID, attempts), color.FgYellow)
		default:
			if _, ok := res.Results[t.ID]; ok {
				printStatus("✓", fmt.Sprintf("%s completed (%d attempts)", t.ID, attempts), color.FgGreen)
			}
		}
	}

	fmt.Printf("\n%s completed, %s failed, %d tokens, $%.4f, %s\n",
		color.GreenString("%d", len(res.CompletedTasks)),
		color.RedString("%d", len(res.FailedTasks)),
		res.TotalTokens,
		res.TotalCost,
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
}

// providerUsage summarizes the calls the backend made, as reported by the
// provider rather than summed from task results.
func providerUsage(m api.Metered) string {
	in, out := m.Tracker().Total()
	return fmt.Sprintf("%s: %d calls, %d input / %d output tokens", m.Model(), m.Tracker().Calls(), in, out)
}

func isSkipped(output any) bool {
	s, ok := output.(models.SkippedOutput)
	return ok && s.Skipped
}
