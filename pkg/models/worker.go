package models

// WorkerID identifies a worker in the registry.
type WorkerID string

// Pricing holds the per-million-token rates for a model.
type Pricing struct {
	// InputPerMillion is the cost in USD per 1M input tokens.
	InputPerMillion float64 `json:"input_per_million" yaml:"input_per_million"`
	// OutputPerMillion is the cost in USD per 1M output tokens.
	OutputPerMillion float64 `json:"output_per_million" yaml:"output_per_million"`
}

// Worker is a specialist that executes tasks with a fixed instruction template.
// Workers are defined at process start and never mutated.
type Worker struct {
	// ID is the registry key for the worker.
	ID WorkerID `json:"id" yaml:"id"`
	// Name is the display name.
	Name string `json:"name" yaml:"name"`
	// Capabilities lists keywords the worker handles.
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	// Instructions is the system prompt used to prime the executor.
	Instructions string `json:"instructions" yaml:"instructions"`
	// Model is the model identifier passed to the executor.
	Model string `json:"model" yaml:"model"`
	// Tier is the capability tier of the model.
	Tier Tier `json:"tier" yaml:"tier"`
	// Pricing is the per-token cost table for Model.
	Pricing Pricing `json:"pricing" yaml:"pricing"`
}

// Handles reports whether the worker lists capability among its keywords.
func (w *Worker) Handles(capability string) bool {
	for _, c := range w.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
