package engine

import (
	"errors"
	"fmt"

	"github.com/kalambet/aist/internal/proxy"
)

// Supported backends.
const (
	BackendOpenRouter = "openrouter"
	BackendOllama     = "ollama"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Backend           string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OllamaBaseURL     string
}

// Detect returns the Engine for the configured backend.
func Detect(cfg DetectConfig) (Engine, error) {
	switch cfg.Backend {
	case BackendOpenRouter, "":
		if cfg.OpenRouterAPIKey == "" {
			return nil, errors.New("openrouter backend selected but no API key is configured")
		}
		baseURL := cfg.OpenRouterBaseURL
		if baseURL == "" {
			baseURL = proxy.DefaultBaseURL
		}
		return NewOpenRouterEngine(cfg.OpenRouterAPIKey, baseURL), nil
	case BackendOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %q or %q)", cfg.Backend, BackendOpenRouter, BackendOllama)
	}
}
