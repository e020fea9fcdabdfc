// Package models defines the data types shared by the coordinator and its
// collaborators.
package models

// TaskTypeTransform marks a task that reshapes data rather than calling an
// integration.
const TaskTypeTransform = "transform"

// Input keys the coordinator writes into a task's input map.
const (
	// InputKeyPreviousOutputs holds outputs of tasks completed earlier in the run.
	InputKeyPreviousOutputs = "previousOutputs"
	// InputKeySupervisorInput holds modified input supplied by the supervisor on retry.
	InputKeySupervisorInput = "supervisorInput"
)

// TaskStatus represents the terminal state of a task within a run.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been reached yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished with an output.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task finished without an output.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Task represents a unit of work submitted as part of a batch.
// Tasks are read-only while a run executes; the coordinator works on copies.
type Task struct {
	// ID is the unique identifier for this task within the batch.
	ID string `json:"id" yaml:"id"`
	// Name is the short human-readable name.
	Name string `json:"name" yaml:"name"`
	// Description is the natural-language instruction for the worker.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Integration is the category or integration tag used for routing.
	Integration string `json:"integration,omitempty" yaml:"integration,omitempty"`
	// Type is an optional task type such as "transform".
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// Agent names an explicit worker, overriding routing.
	Agent string `json:"agent,omitempty" yaml:"agent,omitempty"`
	// Input is the structured input passed to the worker.
	Input map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// ExpectedOutput describes what a good result looks like, for the supervisor.
	ExpectedOutput string `json:"expected_output,omitempty" yaml:"expected_output,omitempty"`
}

// Clone returns a copy of the task with its own input map and dependency
// slice. Nested input values are shared.
func (t *Task) Clone() *Task {
	c := *t
	if t.Input != nil {
		c.Input = make(map[string]any, len(t.Input))
		for k, v := range t.Input {
			c.Input[k] = v
		}
	}
	if t.DependsOn != nil {
		c.DependsOn = append([]string(nil), t.DependsOn...)
	}
	return &c
}

// WithInput returns a copy of the task with key set to value in its input.
func (t *Task) WithInput(key string, value any) *Task {
	c := t.Clone()
	if c.Input == nil {
		c.Input = make(map[string]any, 1)
	}
	c.Input[key] = value
	return c
}

// TaskResult is the outcome of one executor invocation.
// Each attempt produces a fresh TaskResult.
type TaskResult struct {
	// Success reports whether the executor produced an answer.
	Success bool `json:"success"`
	// Output is the generated text.
	Output string `json:"output,omitempty"`
	// TokensUsed is the total input and output tokens consumed.
	TokensUsed int64 `json:"tokens_used"`
	// CostUSD is the cost of the invocation in dollars.
	CostUSD float64 `json:"cost_usd"`
	// WorkerID is the worker that produced the result.
	WorkerID WorkerID `json:"worker_id"`
	// Error contains the failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// SkippedOutput is stored as a task's output when the supervisor skips it.
type SkippedOutput struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason"`
}
