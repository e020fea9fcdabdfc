// Package orchestrator drives a batch of interdependent tasks to completion.
//
// The Coordinator orders tasks by their dependencies, routes each one to a
// worker, executes it, and asks the supervisor what to do with the result:
// continue, retry, escalate to another worker, skip, or abort. Token usage
// and cost of every executor and supervisor call are summed into the run
// result.
package orchestrator
