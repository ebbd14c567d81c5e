package engine

import "context"

// Engine abstracts an inference backend (OpenRouter or a local Ollama).
// Every error returned by Chat and Embed is a *ProviderError.
type Engine interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// Chat sends messages to the given model and returns the assistant's response.
	// An empty response is reported as an error.
	Chat(ctx context.Context, model string, messages []Message) (string, error)

	// Embed returns the embedding vector for the given text using the specified model.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of the models the backend serves.
	ListModels(ctx context.Context) ([]string, error)
}

// ModelPuller is implemented by backends that keep model weights locally.
type ModelPuller interface {
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
