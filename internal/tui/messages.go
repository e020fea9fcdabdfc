package tui

import "time"

// Event types understood by RunApp. They match the coordinator's event
// type strings.
const (
	EventRunStarted      = "run_started"
	EventTaskStarted     = "task_started"
	EventAttemptFinished = "attempt_finished"
	EventTaskEscalated   = "task_escalated"
	EventTaskCompleted   = "task_completed"
	EventTaskFailed      = "task_failed"
	EventRunDone         = "run_done"
)

// EventMsg carries one coordinator event into the view.
type EventMsg struct {
	Type       string
	TaskID     string
	TaskName   string
	WorkerID   string
	Attempt    int
	Action     string
	Message    string
	Error      string
	Timestamp  time.Time
	TokensUsed int64 // Running total for the run
	Cost       float64
	Total      int
}

// RunDoneMsg signals that the run has finished.
type RunDoneMsg struct {
	Success bool
	Message string
}

// TaskInfo identifies a task of the batch before it starts.
type TaskInfo struct {
	ID   string
	Name string
}
