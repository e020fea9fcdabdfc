// Package api provides the text-generation capability used to execute and
// review tasks. Backends wrap the Anthropic API (direct or via AWS Bedrock)
// and the OpenAI API behind the Completer interface.
package api

import (
	"context"

	"github.com/flowpilot-dev/flowpilot/pkg/models"
)

// Task types reported on a Completion.
const (
	TaskTypeExecution = "execution"
	TaskTypeReview    = "review"
)

// Request is a single text-generation call.
type Request struct {
	// System is the instruction template priming the model.
	System string
	// Message is the user message.
	Message string
	// Model overrides the backend's default model when set.
	Model string
	// MaxTokens is the output token budget.
	MaxTokens int
	// Pricing is used to compute cost. Zero pricing falls back to the
	// built-in table for the model.
	Pricing models.Pricing
	// Tier is echoed on the Completion.
	Tier models.Tier
	// TaskType is echoed on the Completion.
	TaskType string
}

// Completion is the outcome of a Request. Provider failures are reported
// through Err rather than a separate error return, so callers handle
// "failed" and "no answer" the same way.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
	// TokensUsed is InputTokens + OutputTokens.
	TokensUsed int64
	CostUSD    float64
	Tier       models.Tier
	TaskType   string
	// Err is set when the provider call failed. Text is empty in that case.
	Err error
}

// OK reports whether the completion produced an answer.
func (c Completion) OK() bool {
	return c.Err == nil
}

// Completer is the text-generation capability.
type Completer interface {
	Complete(ctx context.Context, req Request) Completion
}

// Metered is implemented by backends that count provider-reported usage
// across calls.
type Metered interface {
	Model() string
	Tracker() *TokenTracker
}

// failed builds a Completion for a provider error.
func failed(req Request, err error) Completion {
	return Completion{
		Tier:     req.Tier,
		TaskType: req.TaskType,
		Err:      err,
	}
}

// succeeded builds a Completion from provider usage and text.
func succeeded(req Request, model, text string, input, output int64) Completion {
	pricing := req.Pricing
	if pricing == (models.Pricing{}) {
		pricing = PricingFor(model)
	}
	return Completion{
		Text:         text,
		InputTokens:  input,
		OutputTokens: output,
		TokensUsed:   input + output,
		CostUSD:      Cost(pricing, input, output),
		Tier:         req.Tier,
		TaskType:     req.TaskType,
	}
}
