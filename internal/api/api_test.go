package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/aist/internal/pipeline"
	"github.com/kalambet/aist/internal/retrieval"
	"github.com/kalambet/aist/internal/storage"
)

const testToken = "test-token-12345"

// lengthEmbedder maps text onto a 2-d vector derived from its length, so
// descriptions of similar length land near each other.
type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	out   pipeline.Outcome
	err   error
	tasks []string
}

func (f *fakeGenerator) Run(_ context.Context, task string) (pipeline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return f.out, f.err
}

type testEnv struct {
	store     *storage.Store
	examples  *retrieval.ExampleStore
	retriever *retrieval.Retriever
	gen       *fakeGenerator
	handler   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	emb := lengthEmbedder{}
	examples := retrieval.NewExampleStore(store, emb)
	retriever := retrieval.NewRetriever(emb, examples)
	gen := &fakeGenerator{}

	return &testEnv{
		store:     store,
		examples:  examples,
		retriever: retriever,
		gen:       gen,
		handler: NewAppHandler(AppDeps{
			Store:     store,
			Examples:  examples,
			Retriever: retriever,
			Generator: Serialize(gen),
			Token:     testToken,
		}),
	}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}
