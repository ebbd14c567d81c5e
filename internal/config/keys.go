package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "generation.backend", typ: kString, env: "AIST_GENERATION_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Generation.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Backend },
	},
	{
		key: "generation.model", typ: kString, env: "AIST_GENERATION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generation.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Model },
	},
	{
		key: "generation.analysis_model", typ: kString, env: "AIST_GENERATION_ANALYSIS_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generation.AnalysisModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.AnalysisModel },
	},
	{
		key: "embedding.model", typ: kString, env: "AIST_EMBEDDING_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.Model },
	},
	{
		key: "openrouter.base_url", typ: kString, env: "AIST_OPENROUTER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.BaseURL },
	},
	{
		key: "openrouter.api_key", typ: kString, env: "AIST_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "AIST_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "AIST_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "AIST_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "loop.max_attempts", typ: kInt, env: "AIST_LOOP_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Loop.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Loop.MaxAttempts },
	},
	{
		key: "loop.max_words", typ: kInt, env: "AIST_LOOP_MAX_WORDS",
		apply:   func(cfg *Config, v any) { cfg.Loop.MaxWords = v.(int) },
		extract: func(cfg Config) any { return cfg.Loop.MaxWords },
	},
	{
		key: "loop.exec_timeout", typ: kDuration, env: "AIST_LOOP_EXEC_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Loop.ExecTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Loop.ExecTimeout },
	},
	{
		key: "safety.block_high_risk", typ: kBool, env: "AIST_SAFETY_BLOCK_HIGH_RISK",
		apply:   func(cfg *Config, v any) { cfg.Safety.BlockHighRisk = v.(bool) },
		extract: func(cfg Config) any { return cfg.Safety.BlockHighRisk },
	},
	{
		key: "prompts.command_path", typ: kString, env: "AIST_PROMPTS_COMMAND_PATH",
		apply:   func(cfg *Config, v any) { cfg.Prompts.CommandPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Prompts.CommandPath },
	},
	{
		key: "prompts.analysis_path", typ: kString, env: "AIST_PROMPTS_ANALYSIS_PATH",
		apply:   func(cfg *Config, v any) { cfg.Prompts.AnalysisPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Prompts.AnalysisPath },
	},
	{
		key: "server.port", typ: kInt, env: "AIST_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "log.level", typ: kString, env: "AIST_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts a raw string into the Go type the key expects.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		case kBool:
			v, ok, err := b.GetBool(s.key)
			if err != nil {
				slog.Warn("could not parse config value, using default", "key", s.key, "error", err)
				continue
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			slog.Warn("could not parse config value, using default", "key", s.key, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			slog.Warn("could not parse env var, using default", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
