package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/aist/internal/retrieval"
	"github.com/kalambet/aist/internal/sandbox"
)

const (
	DefaultMaxAttempts = 3
	DefaultMaxWords    = 5000
	DefaultTopK        = 3
)

// Retriever finds examples similar to a task description.
type Retriever interface {
	Retrieve(ctx context.Context, description string, k int) ([]retrieval.Match, error)
}

// Synthesizer produces one candidate command.
type Synthesizer interface {
	Synthesize(ctx context.Context, task string, examples []retrieval.Match, priorError string) (string, error)
}

// Executor runs a command under a time limit.
type Executor interface {
	Run(ctx context.Context, command string, timeout time.Duration) sandbox.Result
}

// Attempt records one pass through generate, execute and validate.
type Attempt struct {
	Number   int
	Command  string
	Result   sandbox.Result
	Verdict  Verdict
	Feedback string
}

// Observer is told about every state transition and finished attempt.
type Observer interface {
	OnState(attempt int, state State)
	OnAttempt(a Attempt)
}

// Options bound the loop.
type Options struct {
	MaxAttempts int
	MaxWords    int
	TopK        int
	ExecTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxWords < 1 {
		o.MaxWords = DefaultMaxWords
	}
	if o.TopK < 1 {
		o.TopK = DefaultTopK
	}
	if o.ExecTimeout <= 0 {
		o.ExecTimeout = sandbox.DefaultTimeout
	}
	return o
}

// Outcome is the result of an accepted run.
type Outcome struct {
	RunID    string
	Command  string
	Stdout   string
	Attempts []Attempt
}

// Loop drives candidate commands through generation, execution and
// validation until one is accepted or MaxAttempts is reached. It runs
// one attempt at a time.
type Loop struct {
	retriever Retriever
	synth     Synthesizer
	exec      Executor
	opts      Options
	observer  Observer
	logger    *slog.Logger
}

// NewLoop creates a Loop from its collaborators.
func NewLoop(r Retriever, s Synthesizer, e Executor, opts Options) *Loop {
	return &Loop{
		retriever: r,
		synth:     s,
		exec:      e,
		opts:      opts.withDefaults(),
		logger:    slog.Default(),
	}
}

// WithObserver sets the progress observer.
func (l *Loop) WithObserver(o Observer) *Loop {
	l.observer = o
	return l
}

// WithLogger sets the logger used for per-attempt diagnostics.
func (l *Loop) WithLogger(logger *slog.Logger) *Loop {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Options returns the effective options after defaults were applied.
func (l *Loop) Options() Options { return l.opts }

// Run executes the loop for task. Provider and retrieval errors end the run
// immediately. When no attempt is accepted the error is an
// *AttemptsExhaustedError.
func (l *Loop) Run(ctx context.Context, task string) (Outcome, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return Outcome{}, ErrEmptyTask
	}

	out := Outcome{RunID: uuid.NewString()}
	log := l.logger.With("run_id", out.RunID)
	log.Debug("loop started", "max_attempts", l.opts.MaxAttempts, "max_words", l.opts.MaxWords, "timeout", l.opts.ExecTimeout)

	var priorError string
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		l.state(n, StateGenerating)
		examples, err := l.retriever.Retrieve(ctx, task, l.opts.TopK)
		if err != nil {
			return out, fmt.Errorf("retrieving examples: %w", err)
		}
		command, err := l.synth.Synthesize(ctx, task, examples, priorError)
		if err != nil {
			return out, fmt.Errorf("generating command: %w", err)
		}

		l.state(n, StateExecuting)
		log.Info("executing candidate", "attempt", n, "command", sandbox.RedactText(command))
		res := l.exec.Run(ctx, command, l.opts.ExecTimeout)
		if err := ctx.Err(); err != nil {
			return out, err
		}

		l.state(n, StateValidating)
		verdict, feedback := Validate(res, l.opts.MaxWords)
		a := Attempt{Number: n, Command: command, Result: res, Verdict: verdict, Feedback: feedback}
		out.Attempts = append(out.Attempts, a)

		log.Info("attempt finished",
			"attempt", n,
			"verdict", verdict.String(),
			"exit_code", res.ExitCode,
			"timed_out", res.TimedOut,
			"words", WordCount(res.Stdout),
			"duration", res.Duration,
		)
		if l.observer != nil {
			l.observer.OnAttempt(a)
		}

		if verdict == VerdictAccepted {
			l.state(n, StateAccepted)
			out.Command = command
			out.Stdout = res.Stdout
			return out, nil
		}

		if n == l.opts.MaxAttempts {
			l.state(n, StateExhausted)
			log.Warn("attempts exhausted", "attempts", n)
			return out, &AttemptsExhaustedError{
				Attempts:    n,
				LastCommand: command,
				LastError:   feedback,
				LastVerdict: verdict,
				History:     out.Attempts,
			}
		}

		l.state(n, StateRetrying)
		priorError = feedback
	}
}

func (l *Loop) state(attempt int, s State) {
	if l.observer != nil {
		l.observer.OnState(attempt, s)
	}
}
