package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/aist/internal/retrieval"
	"github.com/kalambet/aist/internal/storage"
)

const maxExampleBodySize = 1 << 20 // 1MB

// ExampleAdder embeds and persists a new example.
type ExampleAdder interface {
	Add(ctx context.Context, description, command string) (storage.Example, error)
}

// Recaller searches the example index and keeps its snapshot current.
type Recaller interface {
	Retrieve(ctx context.Context, description string, k int) ([]retrieval.Match, error)
	Load(ctx context.Context) error
	Invalidate()
}

type AppDeps struct {
	Store     *storage.Store
	Examples  ExampleAdder
	Retriever Recaller
	Generator Generator // optional; if nil, /generate is not mounted
	Token     string
}

type exampleRequest struct {
	Description string `json:"description"`
	Command     string `json:"command"`
}

type exampleView struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Command     string    `json:"command"`
	Dimension   int       `json:"dimension"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewOf(ex storage.Example) exampleView {
	return exampleView{
		ID:          ex.ID,
		Description: ex.Description,
		Command:     ex.Command,
		Dimension:   len(ex.Embedding),
		CreatedAt:   ex.CreatedAt,
	}
}

// NewAppHandler returns the local service router. /health is open; every
// other route requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/examples", handleListExamples(deps))
		r.Post("/examples", handleAddExample(deps))
		r.Delete("/examples/{id}", handleDeleteExample(deps))
		r.Get("/recall", handleRecall(deps))
		if deps.Generator != nil {
			r.Post("/generate", handleGenerate(deps.Generator))
		}
	})

	return r
}

func handleListExamples(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examples, err := deps.Store.ListExamples(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list examples: %v", err)
			return
		}
		views := make([]exampleView, 0, len(examples))
		for _, ex := range examples {
			views = append(views, viewOf(ex))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleAddExample(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxExampleBodySize)
		defer r.Body.Close()

		var req exampleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Description) == "" || strings.TrimSpace(req.Command) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "description and command are required")
			return
		}

		ex, err := deps.Examples.Add(r.Context(), req.Description, req.Command)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := deps.Retriever.Load(r.Context()); err != nil {
			slog.Warn("rebuilding index after add failed", "id", ex.ID, "error", err)
			deps.Retriever.Invalidate()
		}

		writeJSON(w, http.StatusCreated, viewOf(ex))
	}
}

func handleDeleteExample(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid example id")
			return
		}

		err = deps.Store.DeleteExample(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "example not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete example: %v", err)
			return
		}
		deps.Retriever.Invalidate()

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleRecall(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		limit := parseIntParam(r, "limit", 3, 50)

		matches, err := deps.Retriever.Retrieve(r.Context(), q, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}
