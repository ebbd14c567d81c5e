package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Backend names accepted by generation.backend.
const (
	BackendOpenRouter = "openrouter"
	BackendOllama     = "ollama"
)

// secretService is the secret-store service that holds aist credentials.
const secretService = "aist"

type Config struct {
	Generation GenerationConfig
	Embedding  EmbeddingConfig
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Storage    StorageConfig
	Retrieval  RetrievalConfig
	Loop       LoopConfig
	Safety     SafetyConfig
	Prompts    PromptsConfig
	Server     ServerConfig
	Log        LogConfig
}

type GenerationConfig struct {
	Backend       string
	Model         string
	AnalysisModel string
}

type EmbeddingConfig struct {
	Model string
}

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
}

type OllamaConfig struct {
	BaseURL string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK int
}

// LoopConfig bounds the generate, execute and validate loop.
type LoopConfig struct {
	MaxAttempts int
	MaxWords    int
	ExecTimeout time.Duration
}

type SafetyConfig struct {
	BlockHighRisk bool
}

// PromptsConfig points at instruction template overrides. Empty paths use
// the embedded defaults.
type PromptsConfig struct {
	CommandPath  string
	AnalysisPath string
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Generation: GenerationConfig{
			Backend:       BackendOpenRouter,
			Model:         "deepseek/deepseek-r1-zero:free",
			AnalysisModel: "deepseek/deepseek-r1-zero:free",
		},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		OpenRouter: OpenRouterConfig{
			BaseURL: "https://openrouter.ai/api/v1",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Loop: LoopConfig{
			MaxAttempts: 3,
			MaxWords:    5000,
			ExecTimeout: 2 * time.Minute,
		},
		Safety: SafetyConfig{
			BlockHighRisk: true,
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.aist.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a TOML file at $XDG_CONFIG_HOME/aist/config.toml
// and secrets come from the environment or the local secrets file.
//
// Environment variables (AIST_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

// Keychain abstracts secret-store access for testing.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.OpenRouter.APIKey == "" {
		cfg.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.OpenRouter.APIKey == "" {
		if key, err := kc.Get(secretService, "openrouter_api_key"); err == nil && key != "" {
			cfg.OpenRouter.APIKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that would make the tool unusable.
func (c Config) Validate() error {
	var errs []error
	switch c.Generation.Backend {
	case BackendOpenRouter:
		if c.OpenRouter.APIKey == "" {
			errs = append(errs, fmt.Errorf("missing required config: OpenRouter API key. "+
				"Set it via environment variable AIST_OPENROUTER_API_KEY%s", apiKeyHint()))
		}
	case BackendOllama:
	default:
		errs = append(errs, fmt.Errorf("generation.backend must be %q or %q, got %q",
			BackendOpenRouter, BackendOllama, c.Generation.Backend))
	}
	if c.Generation.Model == "" {
		errs = append(errs, errors.New("generation.model must not be empty"))
	}
	if c.Embedding.Model == "" {
		errs = append(errs, errors.New("embedding.model must not be empty"))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK))
	}
	if c.Loop.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("loop.max_attempts must be at least 1, got %d", c.Loop.MaxAttempts))
	}
	if c.Loop.MaxWords < 1 {
		errs = append(errs, fmt.Errorf("loop.max_words must be at least 1, got %d", c.Loop.MaxWords))
	}
	if c.Loop.ExecTimeout <= 0 {
		errs = append(errs, fmt.Errorf("loop.exec_timeout must be positive, got %s", c.Loop.ExecTimeout))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	return errors.Join(errs...)
}

// LoadRaw is Load without validation, for commands that report on
// configuration that may still be incomplete.
func LoadRaw() (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, newPlatformBackend()); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
