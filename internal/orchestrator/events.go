package orchestrator

import (
	"time"

	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// EventType represents the type of coordinator event.
type EventType string

const (
	// EventRunStarted indicates a batch has started.
	EventRunStarted EventType = "run_started"
	// EventTaskStarted indicates a task's attempt loop has started.
	EventTaskStarted EventType = "task_started"
	// EventAttemptFinished indicates an executor call and its review finished.
	EventAttemptFinished EventType = "attempt_finished"
	// EventTaskEscalated indicates a task was handed to an alternate worker.
	EventTaskEscalated EventType = "task_escalated"
	// EventTaskCompleted indicates a task completed, possibly as skipped.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventRunDone indicates the batch finished.
	EventRunDone EventType = "run_done"
)

// Event is emitted by the coordinator as a run progresses.
// Subscribers such as the TUI use it to render progress.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// WorkflowID is the workflow the run belongs to.
	WorkflowID string
	// TaskID is the related task, if applicable.
	TaskID string
	// TaskName is the related task's name, if applicable.
	TaskName string
	// WorkerID is the worker handling the task, if applicable.
	WorkerID models.WorkerID
	// Attempt is the 1-indexed attempt number for attempt events.
	Attempt int
	// Action is the supervisor decision for attempt events.
	Action models.SupervisorAction
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// TokensUsed is the run's running token total.
	TokensUsed int64
	// Cost is the run's running cost total.
	Cost float64
	// Total is the number of tasks in the batch, set on run events.
	Total int
}
