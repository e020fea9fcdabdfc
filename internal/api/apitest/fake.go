// Package apitest provides a scriptable Completer for tests.
package apitest

import (
	"context"
	"errors"
	"sync"

	"github.com/flowpilot-dev/flowpilot/internal/api"
)

// Fake is a Completer that records requests and answers through Handler.
// It is safe for concurrent use.
type Fake struct {
	// Handler produces the completion for a request. A nil Handler
	// answers every request with an empty successful completion.
	Handler func(req api.Request) api.Completion

	mu    sync.Mutex
	calls []api.Request
}

// Complete records req and returns the Handler's completion. It honors
// cancellation of ctx before calling Handler.
func (f *Fake) Complete(ctx context.Context, req api.Request) api.Completion {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	handler := f.Handler
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return api.Completion{Tier: req.Tier, TaskType: req.TaskType, Err: err}
	}
	if handler == nil {
		return api.Completion{Tier: req.Tier, TaskType: req.TaskType}
	}
	c := handler(req)
	c.Tier = req.Tier
	c.TaskType = req.TaskType
	return c
}

// Calls returns a copy of the recorded requests.
func (f *Fake) Calls() []api.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Request(nil), f.calls...)
}

// CallsOfType returns the recorded requests with the given task type.
func (f *Fake) CallsOfType(taskType string) []api.Request {
	var out []api.Request
	for _, c := range f.Calls() {
		if c.TaskType == taskType {
			out = append(out, c)
		}
	}
	return out
}

// Reply builds a successful completion.
func Reply(text string, tokens int64, cost float64) api.Completion {
	return api.Completion{Text: text, OutputTokens: tokens, TokensUsed: tokens, CostUSD: cost}
}

// Fail builds a failed completion.
func Fail(msg string) api.Completion {
	return api.Completion{Err: errors.New(msg)}
}
