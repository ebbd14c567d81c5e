//go:build integration

package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kalambet/aist/internal/composer"
	"github.com/kalambet/aist/internal/engine"
	"github.com/kalambet/aist/internal/prompts"
	"github.com/kalambet/aist/internal/retrieval"
	"github.com/kalambet/aist/internal/sandbox"
	"github.com/kalambet/aist/internal/storage"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestRun_RealOllama(t *testing.T) {
	ctx := context.Background()
	eng := engine.NewOllamaEngine(envOr("AIST_OLLAMA_BASE_URL", "http://localhost:11434"))
	if !eng.IsRunning(ctx) {
		t.Skip("Ollama is not running, skipping integration test")
	}
	chatModel := envOr("AIST_IT_CHAT_MODEL", "llama3.2")
	embedModel := envOr("AIST_IT_EMBED_MODEL", "nomic-embed-text")
	for _, m := range []string{chatModel, embedModel} {
		if !eng.HasModel(ctx, m) {
			t.Skipf("%s model not available, skipping integration test", m)
		}
	}

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	embedder := retrieval.NewEmbedder(eng, embedModel)
	examples := retrieval.NewExampleStore(store, embedder)
	if _, err := examples.AddBatch(ctx, []retrieval.Pair{
		{Description: "print the word hello", Command: "echo hello"},
		{Description: "show the current date", Command: "date"},
	}); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	instruction, err := prompts.Default(prompts.Command)
	if err != nil {
		t.Fatal(err)
	}
	loop := NewLoop(
		retrieval.NewRetriever(embedder, examples),
		composer.NewSynthesizer(eng, chatModel, instruction),
		sandbox.NewRunner(sandbox.Options{BlockHighRisk: true}),
		Options{ExecTimeout: 20 * time.Second},
	)

	start := time.Now()
	out, err := loop.Run(ctx, "print the word goodbye")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	t.Logf("accepted %q after %d attempts (took %v): %q", out.Command, len(out.Attempts), time.Since(start), out.Stdout)
}
