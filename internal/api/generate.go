package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/kalambet/aist/internal/pipeline"
)

// Generator runs the generate, execute and validate loop for a task.
type Generator interface {
	Run(ctx context.Context, task string) (pipeline.Outcome, error)
}

// serialGenerator admits one loop run at a time.
type serialGenerator struct {
	mu sync.Mutex
	g  Generator
}

// Serialize wraps g so that concurrent callers queue behind a single run.
// The HTTP and MCP surfaces share one wrapped generator.
func Serialize(g Generator) Generator {
	return &serialGenerator{g: g}
}

func (s *serialGenerator) Run(ctx context.Context, task string) (pipeline.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return pipeline.Outcome{}, err
	}
	return s.g.Run(ctx, task)
}

type generateRequest struct {
	Task string `json:"task"`
}

type attemptView struct {
	Number   int    `json:"number"`
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Rejected bool   `json:"rejected,omitempty"`
	Verdict  string `json:"verdict"`
	Feedback string `json:"feedback,omitempty"`
}

type generateResponse struct {
	RunID    string        `json:"run_id"`
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	Attempts []attemptView `json:"attempts"`
}

func attemptViews(attempts []pipeline.Attempt) []attemptView {
	views := make([]attemptView, len(attempts))
	for i, a := range attempts {
		views[i] = attemptView{
			Number:   a.Number,
			Command:  a.Command,
			ExitCode: a.Result.ExitCode,
			TimedOut: a.Result.TimedOut,
			Rejected: a.Result.Rejected,
			Verdict:  a.Verdict.String(),
			Feedback: a.Feedback,
		}
	}
	return views
}

func handleGenerate(g Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxExampleBodySize)
		defer r.Body.Close()

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		out, err := g.Run(r.Context(), req.Task)
		if err != nil {
			var exhausted *pipeline.AttemptsExhaustedError
			if errors.As(err, &exhausted) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"error": map[string]any{
						"message": err.Error(),
						"type":    "attempts_exhausted",
					},
					"verdict":  exhausted.Verdict().String(),
					"attempts": attemptViews(exhausted.History),
				})
				return
			}
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, generateResponse{
			RunID:    out.RunID,
			Command:  out.Command,
			Output:   out.Stdout,
			Attempts: attemptViews(out.Attempts),
		})
	}
}
