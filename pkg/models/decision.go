package models

// SupervisorAction is the control decision issued after reviewing a result.
type SupervisorAction string

const (
	// ActionContinue accepts the result and completes the task.
	ActionContinue SupervisorAction = "continue"
	// ActionRetry runs the task again, optionally with modified input.
	ActionRetry SupervisorAction = "retry"
	// ActionEscalate reassigns the task once to an alternate worker.
	ActionEscalate SupervisorAction = "escalate"
	// ActionSkip completes the task with a skip marker instead of an output.
	ActionSkip SupervisorAction = "skip"
	// ActionAbort fails the task.
	ActionAbort SupervisorAction = "abort"
)

// Valid returns true if the action is a known value.
func (a SupervisorAction) Valid() bool {
	switch a {
	case ActionContinue, ActionRetry, ActionEscalate, ActionSkip, ActionAbort:
		return true
	default:
		return false
	}
}

// SupervisorDecision is the supervisor's judgment of a single attempt.
type SupervisorDecision struct {
	// Action is the control decision.
	Action SupervisorAction `json:"action"`
	// Reason explains the decision.
	Reason string `json:"reason"`
	// NextAgentID is the alternate worker, required for escalate.
	NextAgentID WorkerID `json:"nextAgentId,omitempty"`
	// ModifiedInput is merged into the task input on retry.
	ModifiedInput map[string]any `json:"modifiedInput,omitempty"`
}
