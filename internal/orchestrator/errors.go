package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBudgetExhausted marks tasks not started because the run's token
	// or cost budget was used up.
	ErrBudgetExhausted = errors.New("budget exhausted")
	// ErrDependencyNotSatisfied matches DependencyNotSatisfiedError.
	ErrDependencyNotSatisfied = errors.New("dependency not satisfied")
	// ErrRetryExhausted matches RetryExhaustedError.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
	// ErrAborted matches AbortedError.
	ErrAborted = errors.New("aborted by supervisor")
	// ErrEscalationFailed matches EscalationFailedError.
	ErrEscalationFailed = errors.New("escalation failed")
)

// DependencyNotSatisfiedError reports a task that was not attempted because
// some of its dependencies did not complete. Missing are in-batch tasks that
// failed; External are IDs that are not part of the batch at all.
type DependencyNotSatisfiedError struct {
	TaskID   string
	Missing  []string
	External []string
}

func (e *DependencyNotSatisfiedError) Error() string {
	msg := fmt.Sprintf("task %s: %s", e.TaskID, ErrDependencyNotSatisfied)
	if len(e.Missing) > 0 {
		msg += ": " + strings.Join(e.Missing, ", ")
	}
	if len(e.External) > 0 {
		msg += "; not in batch: " + strings.Join(e.External, ", ")
	}
	return msg
}

// Is reports whether target is ErrDependencyNotSatisfied.
func (e *DependencyNotSatisfiedError) Is(target error) bool {
	return target == ErrDependencyNotSatisfied
}

// RetryExhaustedError reports a task whose attempts ran out without the
// supervisor accepting a result. LastError is the last attempt's executor
// error, or the supervisor's reason when the executor succeeded.
type RetryExhaustedError struct {
	TaskID    string
	Attempts  int
	LastError string
}

func (e *RetryExhaustedError) Error() string {
	msg := fmt.Sprintf("task %s: %s after %d attempts", e.TaskID, ErrRetryExhausted, e.Attempts)
	if e.LastError != "" {
		msg += ": " + e.LastError
	}
	return msg
}

// Is reports whether target is ErrRetryExhausted.
func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

// AbortedError reports a task the supervisor aborted.
type AbortedError struct {
	TaskID string
	Reason string
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("task %s: %s: %s", e.TaskID, ErrAborted, e.Reason)
}

// Is reports whether target is ErrAborted.
func (e *AbortedError) Is(target error) bool {
	return target == ErrAborted
}

// EscalationFailedError reports that the alternate worker also failed.
type EscalationFailedError struct {
	TaskID   string
	WorkerID string
	Err      string
}

func (e *EscalationFailedError) Error() string {
	return fmt.Sprintf("task %s: %s on worker %s: %s", e.TaskID, ErrEscalationFailed, e.WorkerID, e.Err)
}

// Is reports whether target is ErrEscalationFailed.
func (e *EscalationFailedError) Is(target error) bool {
	return target == ErrEscalationFailed
}
