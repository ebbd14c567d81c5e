package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kalambet/aist/internal/engine"
)

// mockEngine implements engine.Engine for testing.
type mockEngine struct {
	embedFn func(ctx context.Context, model string, text string) ([]float32, error)
}

func (m *mockEngine) Name() string { return "mock" }
func (m *mockEngine) Chat(_ context.Context, _ string, _ []engine.Message) (string, error) {
	return "", fmt.Errorf("not implemented")
}
func (m *mockEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return m.embedFn(ctx, model, text)
}
func (m *mockEngine) IsRunning(_ context.Context) bool               { return true }
func (m *mockEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }

func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) * 0.001
	}
	return v
}

func TestEmbed_ReturnsDimension(t *testing.T) {
	var gotModel string
	mock := &mockEngine{
		embedFn: func(_ context.Context, model string, _ string) ([]float32, error) {
			gotModel = model
			return makeVector(1536), nil
		},
	}
	e := NewEmbedder(mock, "text-embedding-3-small")

	vec, err := e.Embed(context.Background(), "fuzz directories")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 1536 {
		t.Errorf("got %d dimensions, want 1536", len(vec))
	}
	if gotModel != "text-embedding-3-small" {
		t.Errorf("model = %q", gotModel)
	}
}

func TestEmbed_ProviderErrorPreserved(t *testing.T) {
	mock := &mockEngine{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			return nil, &engine.ProviderError{Backend: "mock", Op: "embed", Err: errors.New("connection refused")}
		},
	}
	_, err := NewEmbedder(mock, "m").Embed(context.Background(), "hello")
	if !engine.IsProviderError(err) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	mock := &mockEngine{
		embedFn: func(_ context.Context, _ string, text string) ([]float32, error) {
			return []float32{float32(len(text))}, nil
		},
	}
	vecs, err := NewEmbedder(mock, "m").EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 5 {
		t.Fatalf("got %d vectors, want 5", len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Errorf("vecs[%d] = %v, want [%d]", i, v, i+1)
		}
	}
}

func TestEmbedBatch_Error(t *testing.T) {
	mock := &mockEngine{
		embedFn: func(_ context.Context, _ string, text string) ([]float32, error) {
			if text == "b" {
				return nil, errors.New("embedding failed")
			}
			return makeVector(8), nil
		},
	}
	_, err := NewEmbedder(mock, "m").EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "embedding failed") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	mock := &mockEngine{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			t.Fatal("should not be called for empty input")
			return nil, nil
		},
	}
	vecs, err := NewEmbedder(mock, "m").EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %v, want nil", vecs)
	}
}
