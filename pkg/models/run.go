package models

import "time"

// Attempt records one executor invocation made for a task, including
// the supervisor's verdict on it.
type Attempt struct {
	// Number is the 1-indexed attempt number for the primary worker.
	// Escalation attempts reuse the number of the attempt that escalated.
	Number int `json:"number"`
	// WorkerID is the worker that executed the attempt.
	WorkerID WorkerID `json:"worker_id"`
	// Escalated is true for the one-shot run against an alternate worker.
	Escalated bool `json:"escalated,omitempty"`
	// Success mirrors TaskResult.Success.
	Success bool `json:"success"`
	// Action is the supervisor decision, empty for escalation attempts.
	Action SupervisorAction `json:"action,omitempty"`
	// Reason is the supervisor's reason.
	Reason string `json:"reason,omitempty"`
	// TokensUsed includes the execution and its review.
	TokensUsed int64 `json:"tokens_used"`
	// CostUSD includes the execution and its review.
	CostUSD float64 `json:"cost_usd"`
	// Error is the executor error, if any.
	Error string `json:"error,omitempty"`
}

// RunResult is the aggregate outcome of one coordinated batch.
type RunResult struct {
	// RunID uniquely identifies this invocation.
	RunID string `json:"run_id"`
	// WorkflowID is the caller-supplied workflow identifier.
	WorkflowID string `json:"workflow_id"`
	// Success is true iff no task failed.
	Success bool `json:"success"`
	// CompletedTasks lists completed task IDs in completion order.
	CompletedTasks []string `json:"completed_tasks"`
	// FailedTasks lists failed task IDs in failure order.
	FailedTasks []string `json:"failed_tasks"`
	// Results maps completed task IDs to their final output.
	Results map[string]any `json:"results"`
	// TotalTokens sums every executor invocation made during the run.
	TotalTokens int64 `json:"total_tokens"`
	// TotalCost sums the cost of every executor invocation made during the run.
	TotalCost float64 `json:"total_cost"`
	// TaskErrors holds the reason each failed task failed.
	TaskErrors map[string]string `json:"task_errors,omitempty"`
	// Attempts holds the attempt history per task.
	Attempts map[string][]Attempt `json:"attempts,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run ended.
	FinishedAt time.Time `json:"finished_at"`
}
