package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kalambet/aist/internal/engine"
	"github.com/kalambet/aist/internal/storage"
)

// fakeEmbedder returns fixed vectors keyed by text and counts calls.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0}, nil
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func countRows(t *testing.T, s *storage.Store) int {
	t.Helper()
	n, err := s.CountExamples(context.Background())
	if err != nil {
		t.Fatalf("CountExamples: %v", err)
	}
	return n
}

func TestAdd_AssignsIncreasingIDs(t *testing.T) {
	db := openStore(t)
	store := NewExampleStore(db, &fakeEmbedder{vectors: map[string][]float32{
		"dirs":   {1, 0},
		"vhosts": {0, 1},
	}})
	ctx := context.Background()

	a, err := store.Add(ctx, "dirs", "ffuf -u http://t/FUZZ -w dirs.txt")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, err := store.Add(ctx, "vhosts", "ffuf -u http://t -H 'Host: FUZZ.t' -w subs.txt")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if b.ID <= a.ID {
		t.Errorf("ids not increasing: %d then %d", a.ID, b.ID)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 || all[0].ID != a.ID || all[1].Description != "vhosts" {
		t.Errorf("All = %+v", all)
	}
}

func TestAdd_ProviderFailureWritesNothing(t *testing.T) {
	db := openStore(t)
	store := NewExampleStore(db, &fakeEmbedder{
		err: &engine.ProviderError{Backend: "mock", Op: "embed", Err: errors.New("timeout")},
	})

	_, err := store.Add(context.Background(), "dirs", "ffuf")
	if !engine.IsProviderError(err) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if n := countRows(t, db); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestAdd_DimensionMismatchWritesNothing(t *testing.T) {
	db := openStore(t)
	store := NewExampleStore(db, &fakeEmbedder{vectors: map[string][]float32{
		"first":  {1, 2, 3},
		"second": {1, 2},
	}})
	ctx := context.Background()

	if _, err := store.Add(ctx, "first", "ffuf -a"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, err := store.Add(ctx, "second", "ffuf -b")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
	if n := countRows(t, db); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestAdd_RejectsBlankFields(t *testing.T) {
	emb := &fakeEmbedder{}
	store := NewExampleStore(openStore(t), emb)

	if _, err := store.Add(context.Background(), "  ", "ffuf"); !errors.Is(err, ErrInvalidExample) {
		t.Errorf("blank description: err = %v", err)
	}
	if _, err := store.Add(context.Background(), "dirs", ""); !errors.Is(err, ErrInvalidExample) {
		t.Errorf("blank command: err = %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for invalid input", emb.calls)
	}
}

func TestAddBatch_MixedDimensionsWritesNothing(t *testing.T) {
	db := openStore(t)
	store := NewExampleStore(db, &fakeEmbedder{vectors: map[string][]float32{
		"a": {1, 2},
		"b": {1, 2, 3},
	}})

	_, err := store.AddBatch(context.Background(), []Pair{
		{Description: "a", Command: "ffuf -a"},
		{Description: "b", Command: "ffuf -b"},
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
	if n := countRows(t, db); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestAll_EmptyStore(t *testing.T) {
	store := NewExampleStore(openStore(t), &fakeEmbedder{})
	if _, err := store.All(context.Background()); !errors.Is(err, ErrStoreEmpty) {
		t.Errorf("err = %v, want ErrStoreEmpty", err)
	}
}

type failingRepo struct{}

func (failingRepo) InsertExamples(context.Context, []storage.Example) ([]int64, error) {
	return nil, errors.New("disk full")
}
func (failingRepo) ListExamples(context.Context) ([]storage.Example, error) {
	return nil, errors.New("disk gone")
}

func TestPersistenceFailures(t *testing.T) {
	store := NewExampleStore(failingRepo{}, &fakeEmbedder{})
	if _, err := store.Add(context.Background(), "d", "c"); !errors.Is(err, ErrPersistence) {
		t.Errorf("Add err = %v, want ErrPersistence", err)
	}
	if _, err := store.All(context.Background()); !errors.Is(err, ErrPersistence) {
		t.Errorf("All err = %v, want ErrPersistence", err)
	}
}

func TestAdd_ConcurrentAddsShareOneDimension(t *testing.T) {
	db := openStore(t)
	store := NewExampleStore(db, &fakeEmbedder{vectors: map[string][]float32{
		"two":   {1, 2},
		"three": {1, 2, 3},
	}})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, desc := range []string{"two", "three"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = store.Add(context.Background(), desc, "ffuf -"+desc)
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("err = %v, want ErrDimensionMismatch", err)
			}
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("%d adds failed, want exactly 1", failed)
	}
	if n := countRows(t, db); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}
