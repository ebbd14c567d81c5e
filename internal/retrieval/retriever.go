package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kalambet/aist/internal/storage"
)

// Match is a retrieved example with its distance from the query.
type Match struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Command     string  `json:"command"`
	Distance    float64 `json:"distance"`
}

// Retriever finds the stored examples whose descriptions are closest to a
// task description. It queries an in-memory Index snapshot built from the
// store on first use and rebuilt by Load.
type Retriever struct {
	embedder TextEmbedder
	store    *ExampleStore

	mu    sync.Mutex
	index *Index
	byID  map[int64]storage.Example
}

// NewRetriever creates a Retriever over store, embedding queries with embedder.
func NewRetriever(embedder TextEmbedder, store *ExampleStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Load rebuilds the index snapshot from the current store contents.
func (r *Retriever) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

func (r *Retriever) loadLocked(ctx context.Context) error {
	examples, err := r.store.All(ctx)
	if err != nil {
		return err
	}
	ix, err := BuildIndex(examples)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	byID := make(map[int64]storage.Example, len(examples))
	for _, ex := range examples {
		byID[ex.ID] = ex
	}
	r.index, r.byID = ix, byID
	return nil
}

// Invalidate drops the snapshot so the next Retrieve reloads from the store.
func (r *Retriever) Invalidate() {
	r.mu.Lock()
	r.index, r.byID = nil, nil
	r.mu.Unlock()
}

// snapshot returns the current index, loading it on first use.
func (r *Retriever) snapshot(ctx context.Context) (*Index, map[int64]storage.Example, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		if err := r.loadLocked(ctx); err != nil {
			return nil, nil, err
		}
	}
	return r.index, r.byID, nil
}

// Retrieve returns up to k examples nearest to description, closest first.
// An empty store fails with ErrStoreEmpty before any provider call.
func (r *Retriever) Retrieve(ctx context.Context, description string, k int) ([]Match, error) {
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("retrieval query is empty")
	}
	ix, byID, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	vec, err := r.embedder.Embed(ctx, description)
	if err != nil {
		return nil, err
	}

	neighbors, err := ix.Query(vec, k)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		ex, ok := byID[n.ID]
		if !ok {
			return nil, fmt.Errorf("index returned unknown example id %d", n.ID)
		}
		matches = append(matches, Match{
			ID:          ex.ID,
			Description: ex.Description,
			Command:     ex.Command,
			Distance:    n.Distance,
		})
	}
	return matches, nil
}
