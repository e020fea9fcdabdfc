package orchestrator

import (
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Defaults for coordinator options.
const (
	DefaultMaxAttempts    = 3
	DefaultMaxConcurrency = 4
	DefaultCallTimeout    = 2 * time.Minute
)

// Option configures a Coordinator. Use With* functions to create Options.
type Option func(*coordinatorOptions)

// coordinatorOptions holds all optional configuration.
type coordinatorOptions struct {
	maxAttempts    int
	parallel       bool
	maxConcurrency int
	callTimeout    time.Duration
	tokenBudget    int64
	costBudget     float64
	budgetWarning  float64
	emitter        *EventEmitter
	recorder       RunRecorder
	logger         *charmlog.Logger
}

func defaultOptions() coordinatorOptions {
	return coordinatorOptions{
		maxAttempts:    DefaultMaxAttempts,
		maxConcurrency: DefaultMaxConcurrency,
		callTimeout:    DefaultCallTimeout,
		budgetWarning:  DefaultWarningThreshold,
	}
}

// WithMaxAttempts bounds the attempts made with a task's primary worker.
func WithMaxAttempts(n int) Option {
	return func(o *coordinatorOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithParallel runs independent tasks concurrently, at most maxConcurrency
// at a time.
func WithParallel(maxConcurrency int) Option {
	return func(o *coordinatorOptions) {
		o.parallel = true
		if maxConcurrency > 0 {
			o.maxConcurrency = maxConcurrency
		}
	}
}

// WithCallTimeout bounds every executor and supervisor call. Zero disables
// the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(o *coordinatorOptions) { o.callTimeout = d }
}

// WithBudget limits a run's total tokens and cost. Zero means unlimited.
func WithBudget(tokens int64, costUSD float64) Option {
	return func(o *coordinatorOptions) {
		o.tokenBudget = tokens
		o.costBudget = costUSD
	}
}

// WithBudgetWarning sets the fraction of the budget at which a run logs
// that it is nearly exhausted. Values are clamped to 0..1.
func WithBudgetWarning(fraction float64) Option {
	return func(o *coordinatorOptions) { o.budgetWarning = fraction }
}

// WithEventEmitter publishes progress events.
func WithEventEmitter(e *EventEmitter) Option {
	return func(o *coordinatorOptions) { o.emitter = e }
}

// WithRunRecorder persists a summary of every finished run.
func WithRunRecorder(r RunRecorder) Option {
	return func(o *coordinatorOptions) { o.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *charmlog.Logger) Option {
	return func(o *coordinatorOptions) { o.logger = l }
}
