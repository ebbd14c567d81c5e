package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEngine_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "ffuf -u http://t/FUZZ"},
		})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL)
	got, err := e.Chat(context.Background(), "llama3.2", []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "ffuf -u http://t/FUZZ" {
		t.Errorf("got %q", got)
	}
}

func TestOllamaEngine_ChatEmptyIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "  \n"},
		})
	}))
	defer srv.Close()

	_, err := NewOllamaEngine(srv.URL).Chat(context.Background(), "m", nil)
	if !IsProviderError(err) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestOllamaEngine_EmbedFailureIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllamaEngine(srv.URL).Embed(context.Background(), "nomic-embed-text", "x")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.Backend != BackendOllama || pe.Op != "embed" {
		t.Errorf("ProviderError = %+v", pe)
	}
}

func TestOllamaEngine_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	vec, err := NewOllamaEngine(srv.URL).Embed(context.Background(), "nomic-embed-text", "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("len = %d, want 3", len(vec))
	}
}

func TestOpenRouterEngine_ChatFailureIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"message":"upstream"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenRouterEngine("k", srv.URL).Chat(context.Background(), "m", []Message{{Role: RoleUser, Content: "x"}})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.Backend != BackendOpenRouter {
		t.Errorf("backend = %q", pe.Backend)
	}
}
