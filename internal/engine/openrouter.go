package engine

import (
	"context"
	"time"

	"github.com/kalambet/aist/internal/proxy"
)

// OpenRouterEngine adapts the internal/proxy.Client to the Engine interface.
type OpenRouterEngine struct {
	client *proxy.Client
}

var _ Engine = (*OpenRouterEngine)(nil)

// NewOpenRouterEngine creates an engine talking to the OpenAI-compatible API at baseURL.
func NewOpenRouterEngine(apiKey, baseURL string) *OpenRouterEngine {
	return &OpenRouterEngine{client: proxy.NewClientWithBaseURL(apiKey, baseURL)}
}

func (e *OpenRouterEngine) Name() string { return BackendOpenRouter }

func (e *OpenRouterEngine) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	msgs := make([]proxy.Message, len(messages))
	for i, m := range messages {
		msgs[i] = proxy.Message{Role: m.Role, Content: m.Content}
	}
	out, err := e.client.Chat(ctx, model, msgs)
	return chatResult(BackendOpenRouter, out, err)
}

func (e *OpenRouterEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, model, text)
	return embedResult(BackendOpenRouter, vec, err)
}

// IsRunning reports whether the model list endpoint answers with the configured key.
func (e *OpenRouterEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.client.ListModels(ctx)
	return err == nil
}

func (e *OpenRouterEngine) ListModels(ctx context.Context) ([]string, error) {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return nil, wrap(BackendOpenRouter, "list models", err)
	}
	return models, nil
}
