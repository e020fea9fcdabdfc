// Package graph provides the dependency sequencer for task batches.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrDuplicateTask indicates two tasks in a batch share an ID.
var ErrDuplicateTask = errors.New("duplicate task id")

// CyclicDependencyError reports the tasks forming a dependency cycle.
// The first and last elements of Cycle are the same task.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Cycle, " -> "))
}

// Is reports whether target is ErrCycleDetected.
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCycleDetected
}

// DependencyGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// order preserves the input order of task IDs.
	order []string
	// edges maps task ID to IDs of in-batch tasks it depends on.
	edges map[string][]string
	// external maps task ID to dependency IDs not present in the batch.
	external map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]*models.Task),
		edges:    make(map[string][]string),
		external: make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of tasks.
// Dependencies on IDs outside the batch are recorded but not ordered on;
// they can never be satisfied. Returns an error on duplicate IDs or cycles.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
		}
		g.nodes[task.ID] = task
		g.order = append(g.order, task.ID)
		g.edges[task.ID] = nil
	}

	// Second pass: build edges from DependsOn fields.
	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				g.debugLog("[graph.Build] task %s depends on unknown task %s", task.ID, depID)
				g.external[task.ID] = append(g.external[task.ID], depID)
				continue
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if cycle := g.findCycleLocked(); cycle != nil {
		return &CyclicDependencyError{Cycle: cycle}
	}

	g.debugLog("[graph.Build] graph built successfully with %d nodes", len(g.nodes))
	return nil
}

// findCycleLocked runs a three-color DFS and returns the first cycle found,
// or nil. Assumes the lock is held.
func (g *DependencyGraph) findCycleLocked() []string {
	const (
		white = iota
		gray
		black
	)
	colors := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = gray
		stack = append(stack, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case gray:
				// Back edge: the cycle is the stack suffix starting at depID.
				for i, s := range stack {
					if s == depID {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, depID)
					}
				}
			case white:
				if cycle := visit(depID); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
		return nil
	}

	for _, id := range g.order {
		if colors[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalSort returns task IDs in an order where all dependencies come
// before the tasks that depend on them. Roots are visited in input order and
// each task's dependencies in declared order, so the result is deterministic.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if cycle := g.findCycleLocked(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		for _, depID := range g.edges[id] {
			visit(depID)
		}

		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}

	return result, nil
}

// Ready returns, in input order, the IDs of tasks not in done whose in-batch
// dependencies are all in done. External dependencies do not block readiness;
// the coordinator fails such tasks when it reaches them.
func (g *DependencyGraph) Ready(done map[string]bool) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, id := range g.order {
		if done[id] {
			continue
		}
		allDepsDone := true
		for _, depID := range g.edges[id] {
			if !done[depID] {
				allDepsDone = false
				break
			}
		}
		if allDepsDone {
			ready = append(ready, id)
		}
	}

	g.debugLog("[graph.Ready] %d ready tasks: %v", len(ready), ready)
	return ready
}

// GetTask returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) GetTask(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of in-batch tasks that the given task depends on.
func (g *DependencyGraph) GetDependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[taskID]
}

// GetExternalDependencies returns dependency IDs of the given task that are
// not part of the batch.
func (g *DependencyGraph) GetExternalDependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.external[taskID]
}

// GetDependents returns the IDs of tasks that depend on the given task.
func (g *DependencyGraph) GetDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// Order sequences tasks so that every task appears after all of its
// in-batch dependencies. It is a convenience over Build and TopologicalSort.
func Order(tasks []*models.Task) ([]*models.Task, error) {
	g := New()
	if err := g.Build(tasks); err != nil {
		return nil, err
	}
	ids, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	ordered := make([]*models.Task, len(ids))
	for i, id := range ids {
		ordered[i] = g.GetTask(id)
	}
	return ordered, nil
}
