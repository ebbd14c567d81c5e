package main

import (
	"context"
	"fmt"
	"io"

	"github.com/kalambet/aist/internal/analysis"
	"github.com/kalambet/aist/internal/composer"
	"github.com/kalambet/aist/internal/config"
	"github.com/kalambet/aist/internal/engine"
	"github.com/kalambet/aist/internal/pipeline"
	"github.com/kalambet/aist/internal/prompts"
	"github.com/kalambet/aist/internal/retrieval"
	"github.com/kalambet/aist/internal/sandbox"
	"github.com/kalambet/aist/internal/storage"
)

// app holds the components shared by every command that touches the
// example store or the generation provider.
type app struct {
	cfg       config.Config
	engine    engine.Engine
	store     *storage.Store
	examples  *retrieval.ExampleStore
	retriever *retrieval.Retriever
}

func openApp(cfg config.Config) (*app, error) {
	eng, err := engine.Detect(engine.DetectConfig{
		Backend:           cfg.Generation.Backend,
		OpenRouterAPIKey:  cfg.OpenRouter.APIKey,
		OpenRouterBaseURL: cfg.OpenRouter.BaseURL,
		OllamaBaseURL:     cfg.Ollama.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("selecting generation backend: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	embedder := retrieval.NewEmbedder(eng, cfg.Embedding.Model)
	examples := retrieval.NewExampleStore(store, embedder)
	return &app{
		cfg:       cfg,
		engine:    eng,
		store:     store,
		examples:  examples,
		retriever: retrieval.NewRetriever(embedder, examples),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// ensureReady checks the backend and, for local backends, pulls the
// configured models.
func (a *app) ensureReady(ctx context.Context, w io.Writer) error {
	return engine.EnsureReady(ctx, a.engine, []string{
		a.cfg.Generation.Model,
		a.cfg.Generation.AnalysisModel,
		a.cfg.Embedding.Model,
	}, w)
}

// newLoop wires the synthesizer and sandbox into an execution-validation loop.
func (a *app) newLoop() (*pipeline.Loop, error) {
	instruction, err := prompts.Load(a.cfg.Prompts.CommandPath, prompts.Command)
	if err != nil {
		return nil, err
	}
	synth := composer.NewSynthesizer(a.engine, a.cfg.Generation.Model, instruction)
	runner := sandbox.NewRunner(sandbox.Options{BlockHighRisk: a.cfg.Safety.BlockHighRisk})
	return pipeline.NewLoop(a.retriever, synth, runner, pipeline.Options{
		MaxAttempts: a.cfg.Loop.MaxAttempts,
		MaxWords:    a.cfg.Loop.MaxWords,
		TopK:        a.cfg.Retrieval.TopK,
		ExecTimeout: a.cfg.Loop.ExecTimeout,
	}), nil
}

func (a *app) newAnalyzer() (*analysis.Analyzer, error) {
	instruction, err := prompts.Load(a.cfg.Prompts.AnalysisPath, prompts.Analysis)
	if err != nil {
		return nil, err
	}
	model := a.cfg.Generation.AnalysisModel
	if model == "" {
		model = a.cfg.Generation.Model
	}
	return analysis.New(a.engine, model, instruction), nil
}
