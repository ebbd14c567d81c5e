package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/aist/internal/storage"
)

// Repository is the persistence layer behind an ExampleStore.
// *storage.Store implements it.
type Repository interface {
	InsertExamples(ctx context.Context, examples []storage.Example) ([]int64, error)
	ListExamples(ctx context.Context) ([]storage.Example, error)
}

// batchEmbedder is implemented by embedders that can embed many texts at once.
type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Pair is an unembedded (description, command) example.
type Pair struct {
	Description string `json:"description" toml:"description"`
	Command     string `json:"command" toml:"command"`
}

// ExampleStore is the persistent corpus of curated examples. Every stored
// embedding has the same dimension; the first insert fixes it.
type ExampleStore struct {
	repo     Repository
	embedder TextEmbedder
}

// NewExampleStore creates an ExampleStore persisting to repo and embedding
// descriptions with embedder.
func NewExampleStore(repo Repository, embedder TextEmbedder) *ExampleStore {
	return &ExampleStore{repo: repo, embedder: embedder}
}

// Add embeds description and stores the example. Nothing is written when
// embedding fails or the vector has the wrong dimension.
func (s *ExampleStore) Add(ctx context.Context, description, command string) (storage.Example, error) {
	added, err := s.AddBatch(ctx, []Pair{{Description: description, Command: command}})
	if err != nil {
		return storage.Example{}, err
	}
	return added[0], nil
}

// AddBatch embeds and stores all pairs. Either every pair is stored or none is.
func (s *ExampleStore) AddBatch(ctx context.Context, pairs []Pair) ([]storage.Example, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	texts := make([]string, len(pairs))
	for i, p := range pairs {
		if strings.TrimSpace(p.Description) == "" || strings.TrimSpace(p.Command) == "" {
			return nil, fmt.Errorf("%w: example %d needs a description and a command", ErrInvalidExample, i)
		}
		texts[i] = p.Description
	}

	vecs, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	// The repository checks the stored dimension inside its insert transaction.
	dim := len(vecs[0])
	examples := make([]storage.Example, len(pairs))
	for i, p := range pairs {
		if len(vecs[i]) != dim {
			return nil, &DimensionMismatchError{Want: dim, Got: len(vecs[i])}
		}
		examples[i] = storage.Example{
			Description: p.Description,
			Command:     p.Command,
			Embedding:   vecs[i],
		}
	}

	ids, err := s.repo.InsertExamples(ctx, examples)
	if err != nil {
		var derr *storage.DimensionError
		if errors.As(err, &derr) {
			return nil, &DimensionMismatchError{Want: derr.Want, Got: derr.Got}
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	for i := range examples {
		examples[i].ID = ids[i]
	}
	return examples, nil
}

// All returns every stored example in insertion order.
func (s *ExampleStore) All(ctx context.Context) ([]storage.Example, error) {
	examples, err := s.repo.ListExamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if len(examples) == 0 {
		return nil, ErrStoreEmpty
	}
	return examples, nil
}

func (s *ExampleStore) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if b, ok := s.embedder.(batchEmbedder); ok && len(texts) > 1 {
		return b.EmbedBatch(ctx, texts)
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}
