package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/flowpilot-dev/flowpilot/internal/agent"
	"github.com/flowpilot-dev/flowpilot/internal/graph"
	"github.com/flowpilot-dev/flowpilot/internal/state"
	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// TaskExecutor runs a task with a worker. Failures are reported in the
// result, never as an error.
type TaskExecutor interface {
	Execute(ctx context.Context, workflowID string, worker models.Worker, task *models.Task) models.TaskResult
}

// TaskReviewer judges a task result and decides what happens next.
type TaskReviewer interface {
	Review(ctx context.Context, result models.TaskResult, rc agent.ReviewContext) agent.Review
}

// RunRecorder persists finished runs.
type RunRecorder interface {
	SaveRun(ctx context.Context, r *state.Run) error
}

// Coordinator drives batches of tasks through the execute/review state
// machine. A Coordinator holds no per-run state and may run several
// batches concurrently.
type Coordinator struct {
	registry   *agent.Registry
	router     *agent.Router
	executor   TaskExecutor
	supervisor TaskReviewer
	opts       coordinatorOptions
	logger     *charmlog.Logger
}

// NewCoordinator creates a Coordinator over an immutable worker registry.
func NewCoordinator(registry *agent.Registry, executor TaskExecutor, supervisor TaskReviewer, opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	return &Coordinator{
		registry:   registry,
		router:     agent.NewRouter(registry),
		executor:   executor,
		supervisor: supervisor,
		opts:       o,
		logger:     logger,
	}
}

// ExecuteWorkflow runs tasks in dependency order and returns the aggregate
// result. The result is never nil. An error is returned only when the batch
// itself is invalid (a dependency cycle or duplicate task IDs); every task
// is then reported failed and nothing is executed. Task failures, supervisor
// decisions and cancellation are reported through the result.
func (c *Coordinator) ExecuteWorkflow(ctx context.Context, workflowID string, tasks []*models.Task) (*models.RunResult, error) {
	r := newRun(workflowID)
	log := c.logger.With("workflow", workflowID, "run", r.id)
	log.Info("run started", "tasks", len(tasks), "parallel", c.opts.parallel)
	c.emit(Event{Type: EventRunStarted, WorkflowID: workflowID, Total: len(tasks)})

	g := graph.New()
	g.SetDebugLog(log.Debugf)
	if err := g.Build(tasks); err != nil {
		log.Error("invalid batch", "err", err)
		for _, t := range tasks {
			if r.fail(t.ID, err) {
				c.emit(Event{Type: EventTaskFailed, WorkflowID: workflowID, TaskID: t.ID, TaskName: t.Name, Error: err})
			}
		}
		return c.finish(ctx, r, log), err
	}

	order, err := g.TopologicalSort()
	if err != nil {
		// Build already rejected cycles.
		return c.finish(ctx, r, log), err
	}

	budget := NewBudgetHandler(c.opts.tokenBudget, c.opts.costBudget)
	budget.SetWarningThreshold(c.opts.budgetWarning)
	p := &pipeline{
		c:          c,
		workflowID: workflowID,
		run:        r,
		graph:      g,
		budget:     budget,
		log:        log,
	}

	if c.opts.parallel {
		p.runWaves(ctx, g)
	} else {
		for _, id := range order {
			p.runTask(ctx, g.GetTask(id), r.outputsSnapshot())
		}
	}

	return c.finish(ctx, r, log), nil
}

// finish builds the result, announces it and records it.
func (c *Coordinator) finish(ctx context.Context, r *run, log *charmlog.Logger) *models.RunResult {
	res := r.result()
	log.Info("run finished",
		"success", res.Success,
		"completed", len(res.CompletedTasks),
		"failed", len(res.FailedTasks),
		"tokens", res.TotalTokens,
		"cost", res.TotalCost,
		"duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	c.emit(Event{
		Type:       EventRunDone,
		WorkflowID: res.WorkflowID,
		TokensUsed: res.TotalTokens,
		Cost:       res.TotalCost,
		Total:      len(res.CompletedTasks) + len(res.FailedTasks),
	})

	if c.opts.recorder != nil {
		if err := c.opts.recorder.SaveRun(context.WithoutCancel(ctx), toStateRun(res)); err != nil {
			log.Warn("recording run failed", "err", err)
		}
	}
	return res
}

func (c *Coordinator) emit(e Event) {
	if c.opts.emitter != nil {
		c.opts.emitter.Emit(e)
	}
}

// pipeline carries the per-run state shared by task pipelines.
type pipeline struct {
	c          *Coordinator
	workflowID string
	run        *run
	graph      *graph.DependencyGraph
	budget     *BudgetHandler
	log        *charmlog.Logger
}

// runWaves executes tasks whose in-batch dependencies have all finished,
// one wave at a time, with bounded concurrency inside a wave.
func (p *pipeline) runWaves(ctx context.Context, g *graph.DependencyGraph) {
	finished := make(map[string]bool, g.Size())
	for {
		ready := g.Ready(finished)
		if len(ready) == 0 {
			return
		}

		outputs := p.run.outputsSnapshot()
		var eg errgroup.Group
		eg.SetLimit(p.c.opts.maxConcurrency)
		for _, id := range ready {
			task := g.GetTask(id)
			eg.Go(func() error {
				p.runTask(ctx, task, outputs)
				return nil
			})
		}
		_ = eg.Wait()

		for _, id := range ready {
			finished[id] = true
		}
	}
}

// usage adds a call's tokens and cost to the run and the budget.
func (p *pipeline) usage(tokens int64, cost float64) (int64, float64) {
	p.budget.Update(tokens, cost)
	if p.budget.ShouldWarn() {
		used, spent, fraction := p.budget.GetUsage()
		p.log.Warn("run budget nearly exhausted", "tokens", used, "cost", spent,
			"used", fmt.Sprintf("%.0f%%", fraction*100),
			"threshold", fmt.Sprintf("%.0f%%", p.budget.GetWarningThreshold()*100))
	}
	return p.run.addUsage(tokens, cost)
}

// failTask marks a task failed and announces it.
func (p *pipeline) failTask(task *models.Task, worker models.WorkerID, err error) {
	if !p.run.fail(task.ID, err) {
		return
	}
	tokens, cost := p.run.totals()
	if blocked := p.graph.GetDependents(task.ID); len(blocked) > 0 {
		p.log.Warn("task failed", "task", task.ID, "worker", worker, "blocks", strings.Join(blocked, ","), "err", err)
	} else {
		p.log.Warn("task failed", "task", task.ID, "worker", worker, "err", err)
	}
	p.c.emit(Event{
		Type: EventTaskFailed, WorkflowID: p.workflowID, TaskID: task.ID, TaskName: task.Name,
		WorkerID: worker, Error: err, TokensUsed: tokens, Cost: cost,
	})
}

// completeTask marks a task completed with output and announces it.
func (p *pipeline) completeTask(task *models.Task, worker models.WorkerID, output any, msg string) {
	if !p.run.complete(task.ID, output) {
		return
	}
	tokens, cost := p.run.totals()
	p.log.Info("task completed", "task", task.ID, "worker", worker, "note", msg)
	p.c.emit(Event{
		Type: EventTaskCompleted, WorkflowID: p.workflowID, TaskID: task.ID, TaskName: task.Name,
		WorkerID: worker, Message: msg, TokensUsed: tokens, Cost: cost,
	})
}

// callContext bounds one executor or supervisor call.
func (p *pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.c.opts.callTimeout > 0 {
		return context.WithTimeout(ctx, p.c.opts.callTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *pipeline) execute(ctx context.Context, worker models.Worker, task *models.Task) models.TaskResult {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	return p.c.executor.Execute(callCtx, p.workflowID, worker, task)
}

func (p *pipeline) review(ctx context.Context, result models.TaskResult, rc agent.ReviewContext) agent.Review {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	return p.c.supervisor.Review(callCtx, result, rc)
}

// runTask drives one task through the attempt loop until it reaches a
// terminal state. outputs are the completed outputs visible to the task.
func (p *pipeline) runTask(ctx context.Context, task *models.Task, outputs map[string]any) {
	if err := ctx.Err(); err != nil {
		p.failTask(task, "", fmt.Errorf("task %s not started: %w", task.ID, err))
		return
	}

	var missing []string
	for _, dep := range p.graph.GetDependencies(task.ID) {
		if !p.run.isCompleted(dep) {
			missing = append(missing, dep)
		}
	}
	if external := p.graph.GetExternalDependencies(task.ID); len(missing) > 0 || len(external) > 0 {
		p.failTask(task, "", &DependencyNotSatisfiedError{TaskID: task.ID, Missing: missing, External: external})
		return
	}

	if !p.budget.CanStartNew() {
		p.failTask(task, "", fmt.Errorf("task %s not started: %w", task.ID, ErrBudgetExhausted))
		return
	}

	workerID := p.c.router.Route(task)
	worker, err := p.c.registry.Lookup(workerID)
	if err != nil {
		p.failTask(task, workerID, err)
		return
	}

	p.run.start(task.ID)
	p.log.Info("task started", "task", task.ID, "worker", workerID)
	p.c.emit(Event{Type: EventTaskStarted, WorkflowID: p.workflowID, TaskID: task.ID, TaskName: task.Name, WorkerID: workerID})

	current := agent.WithPreviousOutputs(task, outputs)
	var lastErr string

	for attempt := 1; attempt <= p.c.opts.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			p.failTask(task, workerID, fmt.Errorf("task %s cancelled before attempt %d: %w", task.ID, attempt, err))
			return
		}

		result := p.execute(ctx, worker, current)
		p.usage(result.TokensUsed, result.CostUSD)
		if !result.Success {
			lastErr = result.Error
		}

		// A cancelled run must not reach the supervisor, whose fallback
		// would turn the cancellation into a skip.
		if err := ctx.Err(); err != nil {
			p.recordAttempt(task, models.Attempt{
				Number: attempt, WorkerID: workerID, Success: result.Success,
				TokensUsed: result.TokensUsed, CostUSD: result.CostUSD, Error: result.Error,
			})
			p.failTask(task, workerID, fmt.Errorf("task %s cancelled during attempt %d: %w", task.ID, attempt, err))
			return
		}

		review := p.review(ctx, result, agent.ReviewContext{
			TaskName:         task.Name,
			ExpectedOutput:   task.ExpectedOutput,
			PreviousAttempts: attempt - 1,
		})
		tokens, cost := p.usage(review.TokensUsed, review.CostUSD)
		decision := review.Decision

		p.recordAttempt(task, models.Attempt{
			Number:     attempt,
			WorkerID:   workerID,
			Success:    result.Success,
			Action:     decision.Action,
			Reason:     decision.Reason,
			TokensUsed: result.TokensUsed + review.TokensUsed,
			CostUSD:    result.CostUSD + review.CostUSD,
			Error:      result.Error,
		})
		p.c.emit(Event{
			Type: EventAttemptFinished, WorkflowID: p.workflowID, TaskID: task.ID, TaskName: task.Name,
			WorkerID: workerID, Attempt: attempt, Action: decision.Action, Message: decision.Reason,
			TokensUsed: tokens, Cost: cost,
		})
		if review.Fallback {
			p.log.Debug("supervisor fallback", "task", task.ID, "attempt", attempt, "reason", review.FallbackReason)
		}

		switch decision.Action {
		case models.ActionContinue:
			p.completeTask(task, workerID, result.Output, "")
			return

		case models.ActionSkip:
			p.completeTask(task, workerID, models.SkippedOutput{Skipped: true, Reason: decision.Reason}, "skipped")
			return

		case models.ActionAbort:
			p.failTask(task, workerID, &AbortedError{TaskID: task.ID, Reason: decision.Reason})
			return

		case models.ActionEscalate:
			p.escalate(ctx, task, current, attempt, decision)
			return

		case models.ActionRetry:
			if result.Success && decision.Reason != "" {
				lastErr = decision.Reason
			}
			if decision.ModifiedInput != nil {
				current = current.WithInput(models.InputKeySupervisorInput, decision.ModifiedInput)
			}
			p.log.Info("retrying task", "task", task.ID, "attempt", attempt, "reason", decision.Reason)

		default:
			// The supervisor validates actions; treat anything else as a retry.
			p.log.Warn("unknown supervisor action", "task", task.ID, "action", decision.Action)
		}
	}

	p.failTask(task, workerID, &RetryExhaustedError{TaskID: task.ID, Attempts: p.c.opts.maxAttempts, LastError: lastErr})
}

// escalate runs the task once with the alternate worker and settles it on
// that result. Escalation is never retried or reviewed.
func (p *pipeline) escalate(ctx context.Context, task, current *models.Task, attempt int, decision models.SupervisorDecision) {
	alt, err := p.c.registry.Lookup(decision.NextAgentID)
	if err != nil {
		p.failTask(task, decision.NextAgentID, fmt.Errorf("escalate task %s: %w", task.ID, err))
		return
	}
	if err := ctx.Err(); err != nil {
		p.failTask(task, alt.ID, fmt.Errorf("task %s cancelled before escalation: %w", task.ID, err))
		return
	}

	p.log.Info("escalating task", "task", task.ID, "to", alt.ID, "reason", decision.Reason)
	p.c.emit(Event{
		Type: EventTaskEscalated, WorkflowID: p.workflowID, TaskID: task.ID, TaskName: task.Name,
		WorkerID: alt.ID, Attempt: attempt, Message: decision.Reason,
	})

	result := p.execute(ctx, alt, current)
	p.usage(result.TokensUsed, result.CostUSD)
	p.recordAttempt(task, models.Attempt{
		Number:     attempt,
		WorkerID:   alt.ID,
		Escalated:  true,
		Success:    result.Success,
		TokensUsed: result.TokensUsed,
		CostUSD:    result.CostUSD,
		Error:      result.Error,
	})

	if result.Success {
		p.completeTask(task, alt.ID, result.Output, "escalated")
		return
	}
	p.failTask(task, alt.ID, &EscalationFailedError{TaskID: task.ID, WorkerID: string(alt.ID), Err: result.Error})
}

func (p *pipeline) recordAttempt(task *models.Task, a models.Attempt) {
	p.run.recordAttempt(task.ID, a)
}

// IsBatchError reports whether err from ExecuteWorkflow means the batch was
// rejected before any task ran.
func IsBatchError(err error) bool {
	return errors.Is(err, graph.ErrCycleDetected) || errors.Is(err, graph.ErrDuplicateTask)
}
