package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flowpilot-dev/flowpilot/internal/state"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// run is the aggregate state of one batch. All methods are safe for
// concurrent use by task pipelines.
type run struct {
	mu sync.Mutex

	id         string
	workflowID string
	startedAt  time.Time

	completed []string
	failed    []string
	status    map[string]models.TaskStatus
	outputs   map[string]any
	errs      map[string]string
	attempts  map[string][]models.Attempt

	tokens int64
	// cost is summed in decimal so totals do not depend on call order.
	cost decimal.Decimal
}

func newRun(workflowID string) *run {
	return &run{
		id:         uuid.NewString(),
		workflowID: workflowID,
		startedAt:  time.Now(),
		status:     make(map[string]models.TaskStatus),
		outputs:    make(map[string]any),
		errs:       make(map[string]string),
		attempts:   make(map[string][]models.Attempt),
	}
}

// addUsage adds one call's tokens and cost to the run totals and returns
// the new totals.
func (r *run) addUsage(tokens int64, cost float64) (int64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens += tokens
	r.cost = r.cost.Add(decimal.NewFromFloat(cost))
	total, _ := r.cost.Float64()
	return r.tokens, total
}

// totals returns the running token and cost totals.
func (r *run) totals() (int64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total, _ := r.cost.Float64()
	return r.tokens, total
}

// start marks a task in progress.
func (r *run) start(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, done := r.status[taskID]; !done {
		r.status[taskID] = models.TaskStatusInProgress
	}
}

// isTerminalLocked reports whether taskID is completed or failed.
func (r *run) isTerminalLocked(taskID string) bool {
	s := r.status[taskID]
	return s == models.TaskStatusCompleted || s == models.TaskStatusFailed
}

// complete records a completed task and its output. It reports false when
// the task had already reached a terminal state.
func (r *run) complete(taskID string, output any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isTerminalLocked(taskID) {
		return false
	}
	r.status[taskID] = models.TaskStatusCompleted
	r.completed = append(r.completed, taskID)
	r.outputs[taskID] = output
	return true
}

// fail records a failed task and its reason. It reports false when the task
// had already reached a terminal state.
func (r *run) fail(taskID string, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isTerminalLocked(taskID) {
		return false
	}
	r.status[taskID] = models.TaskStatusFailed
	r.failed = append(r.failed, taskID)
	if err != nil {
		r.errs[taskID] = err.Error()
	}
	return true
}

// recordAttempt appends to a task's attempt history.
func (r *run) recordAttempt(taskID string, a models.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[taskID] = append(r.attempts[taskID], a)
}

// isCompleted reports whether taskID completed.
func (r *run) isCompleted(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status[taskID] == models.TaskStatusCompleted
}

// outputsSnapshot copies the outputs of completed tasks.
func (r *run) outputsSnapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.outputs))
	for k, v := range r.outputs {
		out[k] = v
	}
	return out
}

// result builds the final RunResult.
func (r *run) result() *models.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	total, _ := r.cost.Float64()
	res := &models.RunResult{
		RunID:          r.id,
		WorkflowID:     r.workflowID,
		Success:        len(r.failed) == 0,
		CompletedTasks: append([]string{}, r.completed...),
		FailedTasks:    append([]string{}, r.failed...),
		Results:        make(map[string]any, len(r.outputs)),
		TotalTokens:    r.tokens,
		TotalCost:      total,
		TaskErrors:     make(map[string]string, len(r.errs)),
		Attempts:       make(map[string][]models.Attempt, len(r.attempts)),
		StartedAt:      r.startedAt,
		FinishedAt:     time.Now(),
	}
	for k, v := range r.outputs {
		res.Results[k] = v
	}
	for k, v := range r.errs {
		res.TaskErrors[k] = v
	}
	for k, v := range r.attempts {
		res.Attempts[k] = append([]models.Attempt(nil), v...)
	}
	return res
}

// toStateRun converts a RunResult into the persisted run summary.
func toStateRun(res *models.RunResult) *state.Run {
	finished := res.FinishedAt
	return &state.Run{
		ID:             res.RunID,
		WorkflowID:     res.WorkflowID,
		Success:        res.Success,
		CompletedTasks: res.CompletedTasks,
		FailedTasks:    res.FailedTasks,
		TaskErrors:     res.TaskErrors,
		TotalTokens:    res.TotalTokens,
		TotalCost:      res.TotalCost,
		StartedAt:      res.StartedAt,
		FinishedAt:     &finished,
	}
}
