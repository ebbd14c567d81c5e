package proxy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 120 * time.Second

	referer = "https://github.com/kalambet/aist"
	title   = "aist"
)

// Message is a single chat message. Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Client talks to OpenRouter through its OpenAI-compatible API.
// Requests are never retried: a failed call is reported to the caller as is.
type Client struct {
	api openai.Client
}

// NewClient creates an OpenRouter client with the given API key.
func NewClient(apiKey string) *Client {
	return NewClientWithBaseURL(apiKey, DefaultBaseURL)
}

// NewClientWithBaseURL creates a client pointing at a custom OpenAI-compatible base URL.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		api: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
			option.WithHeader("HTTP-Referer", referer),
			option.WithHeader("X-Title", title),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(defaultTimeout),
		),
	}
}

// Chat sends a chat completion request and returns the content of the first choice.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature: openai.Float(0),
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", describe(err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding of text computed by model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", describe(err))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("embedding: response has no vectors")
	}
	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, f := range src {
		vec[i] = float32(f)
	}
	return vec, nil
}

// ListModels returns the ids of models the account can use.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.api.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", describe(err))
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// describe reduces API errors to their status code, which is what users act on.
func describe(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return fmt.Errorf("authentication failed (HTTP %d): check the OpenRouter API key: %w", apiErr.StatusCode, err)
		case 429:
			return fmt.Errorf("rate limited (HTTP 429): %w", err)
		}
	}
	return err
}
