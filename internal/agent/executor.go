package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	charmlog "github.com/charmbracelet/log"

	"github.com/flowpilot-dev/flowpilot/internal/api"
	"github.com/flowpilot-dev/flowpilot/internal/state"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// DefaultExecutorMaxTokens is the output budget for task execution.
const DefaultExecutorMaxTokens = 4096

// Executor runs a task through a worker using the text-generation capability.
type Executor struct {
	completer   api.Completer
	checkpoints state.CheckpointWriter
	maxTokens   int
	logger      *charmlog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCheckpoints records a checkpoint after every successful execution.
// The writer should not block; see state.AsyncCheckpointer.
func WithCheckpoints(w state.CheckpointWriter) ExecutorOption {
	return func(e *Executor) { e.checkpoints = w }
}

// WithExecutorMaxTokens sets the output token budget.
func WithExecutorMaxTokens(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l *charmlog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an Executor backed by completer.
func NewExecutor(completer api.Completer, opts ...ExecutorOption) *Executor {
	e := &Executor{
		completer: completer,
		maxTokens: DefaultExecutorMaxTokens,
		logger:    charmlog.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs task with worker. It never returns an error: provider
// failures become a TaskResult with Success false.
func (e *Executor) Execute(ctx context.Context, workflowID string, worker models.Worker, task *models.Task) models.TaskResult {
	message, err := BuildTaskMessage(task)
	if err != nil {
		return models.TaskResult{WorkerID: worker.ID, Error: err.Error()}
	}

	completion := e.completer.Complete(ctx, api.Request{
		System:    worker.Instructions,
		Message:   message,
		Model:     worker.Model,
		MaxTokens: e.maxTokens,
		Pricing:   worker.Pricing,
		Tier:      worker.Tier,
		TaskType:  api.TaskTypeExecution,
	})

	result := models.TaskResult{
		Success:    completion.OK(),
		Output:     completion.Text,
		TokensUsed: completion.TokensUsed,
		CostUSD:    completion.CostUSD,
		WorkerID:   worker.ID,
	}
	if !completion.OK() {
		result.Output = ""
		result.Error = completion.Err.Error()
		e.logger.Debug("task execution failed", "task", task.ID, "worker", worker.ID, "err", completion.Err)
		return result
	}

	e.checkpoint(ctx, workflowID, task, result)
	return result
}

// checkpoint records a successful result. Failures are logged only.
func (e *Executor) checkpoint(ctx context.Context, workflowID string, task *models.Task, result models.TaskResult) {
	if e.checkpoints == nil {
		return
	}
	cp := &state.Checkpoint{
		WorkflowID:     workflowID,
		CheckpointName: CheckpointName(task.ID, result.WorkerID),
		StateSnapshot: map[string]any{
			"taskId":   task.ID,
			"taskName": task.Name,
			"workerId": string(result.WorkerID),
			"output":   result.Output,
		},
		TokensUsedInStep: result.TokensUsed,
		CostUSDInStep:    result.CostUSD,
	}
	if err := e.checkpoints.CreateCheckpoint(context.WithoutCancel(ctx), cp); err != nil {
		e.logger.Warn("checkpoint failed", "workflow", workflowID, "task", task.ID, "err", err)
	}
}

// CheckpointName is the checkpoint name recorded for a task and worker.
func CheckpointName(taskID string, worker models.WorkerID) string {
	return fmt.Sprintf("task_%s_%s", taskID, worker)
}

// BuildTaskMessage renders the user message for a task: its name,
// description, and JSON-serialized input.
func BuildTaskMessage(task *models.Task) (string, error) {
	var sb strings.Builder

	sb.WriteString("## Task: ")
	sb.WriteString(task.Name)
	sb.WriteString("\n\n")
	if task.Description != "" {
		sb.WriteString(task.Description)
		sb.WriteString("\n\n")
	}
	if task.ExpectedOutput != "" {
		sb.WriteString("## Expected Output\n\n")
		sb.WriteString(task.ExpectedOutput)
		sb.WriteString("\n\n")
	}

	if len(task.Input) > 0 {
		input, err := json.MarshalIndent(task.Input, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serialize input for task %s: %w", task.ID, err)
		}
		sb.WriteString("## Input\n\n```json\n")
		sb.Write(input)
		sb.WriteString("\n```\n")
	}

	return sb.String(), nil
}
