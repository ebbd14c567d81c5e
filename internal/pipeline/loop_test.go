package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/aist/internal/engine"
	"github.com/kalambet/aist/internal/retrieval"
	"github.com/kalambet/aist/internal/sandbox"
)

type fakeRetriever struct {
	calls int
	err   error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, k int) ([]retrieval.Match, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []retrieval.Match{{ID: 1, Description: "dirs", Command: "ffuf -u http://t/FUZZ"}}, nil
}

// scriptedSynth returns commands in order and records the prior errors it saw.
type scriptedSynth struct {
	commands    []string
	err         error
	priorErrors []string
}

func (s *scriptedSynth) Synthesize(_ context.Context, _ string, _ []retrieval.Match, priorError string) (string, error) {
	s.priorErrors = append(s.priorErrors, priorError)
	if s.err != nil {
		return "", s.err
	}
	i := len(s.priorErrors) - 1
	if i >= len(s.commands) {
		i = len(s.commands) - 1
	}
	return s.commands[i], nil
}

// scriptedExec maps commands to canned results.
type scriptedExec struct {
	results map[string]sandbox.Result
	ran     []string
	timeout time.Duration
}

func (e *scriptedExec) Run(_ context.Context, command string, timeout time.Duration) sandbox.Result {
	e.ran = append(e.ran, command)
	e.timeout = timeout
	res := e.results[command]
	res.Command = command
	return res
}

type recordingObserver struct {
	states   []State
	attempts []Attempt
}

func (o *recordingObserver) OnState(_ int, s State) { o.states = append(o.states, s) }
func (o *recordingObserver) OnAttempt(a Attempt)    { o.attempts = append(o.attempts, a) }

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("w ", n))
}

func TestRun_AcceptsFirstAttempt(t *testing.T) {
	ret := &fakeRetriever{}
	synth := &scriptedSynth{commands: []string{"ffuf -u http://example.com/FUZZ -w dirs.txt"}}
	exec := &scriptedExec{results: map[string]sandbox.Result{
		"ffuf -u http://example.com/FUZZ -w dirs.txt": {Stdout: "admin [Status: 301]\n"},
	}}
	obs := &recordingObserver{}

	out, err := NewLoop(ret, synth, exec, Options{ExecTimeout: time.Second}).WithObserver(obs).Run(context.Background(), "fuzz dirs")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Command != "ffuf -u http://example.com/FUZZ -w dirs.txt" || out.Stdout != "admin [Status: 301]\n" {
		t.Errorf("outcome = %+v", out)
	}
	if len(out.Attempts) != 1 || out.Attempts[0].Verdict != VerdictAccepted {
		t.Errorf("attempts = %+v", out.Attempts)
	}
	if out.RunID == "" {
		t.Error("run id not set")
	}
	if synth.priorErrors[0] != "" {
		t.Errorf("first attempt got prior error %q", synth.priorErrors[0])
	}
	if exec.timeout != time.Second {
		t.Errorf("timeout = %v, want 1s", exec.timeout)
	}

	want := []State{StateGenerating, StateExecuting, StateValidating, StateAccepted}
	if len(obs.states) != len(want) {
		t.Fatalf("states = %v, want %v", obs.states, want)
	}
	for i := range want {
		if obs.states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, obs.states[i], want[i])
		}
	}
}

func TestRun_RetryFeedsPriorError(t *testing.T) {
	ret := &fakeRetriever{}
	synth := &scriptedSynth{commands: []string{"ffuf -bad", "ffuf -good"}}
	exec := &scriptedExec{results: map[string]sandbox.Result{
		"ffuf -bad":  {ExitCode: 2, Stderr: "flag provided but not defined: -bad\n"},
		"ffuf -good": {Stdout: "ok"},
	}}

	out, err := NewLoop(ret, synth, exec, Options{}).Run(context.Background(), "fuzz")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Command != "ffuf -good" {
		t.Errorf("command = %q", out.Command)
	}
	if len(synth.priorErrors) != 2 || synth.priorErrors[1] != "flag provided but not defined: -bad" {
		t.Errorf("prior errors = %q", synth.priorErrors)
	}
	if out.Attempts[0].Verdict != VerdictRetryExecFailed {
		t.Errorf("first verdict = %v", out.Attempts[0].Verdict)
	}
	if ret.calls != 2 {
		t.Errorf("retriever called %d times, want once per attempt", ret.calls)
	}
}

func TestRun_ExhaustedAfterMaxAttempts(t *testing.T) {
	synth := &scriptedSynth{commands: []string{"a", "b", "c", "d"}}
	exec := &scriptedExec{results: map[string]sandbox.Result{
		"a": {ExitCode: 1, Stderr: "err a"},
		"b": {ExitCode: 1, Stderr: "err b"},
		"c": {ExitCode: 1, Stderr: "err c"},
		"d": {Stdout: "never reached"},
	}}

	_, err := NewLoop(&fakeRetriever{}, synth, exec, Options{}).Run(context.Background(), "task")
	var ex *AttemptsExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want AttemptsExhaustedError", err)
	}
	if ex.Attempts != 3 || ex.LastCommand != "c" || ex.LastError != "err c" {
		t.Errorf("exhausted = %+v", ex)
	}
	if len(exec.ran) != 3 {
		t.Errorf("ran %d commands, want exactly 3", len(exec.ran))
	}
	if ex.Verdict() != VerdictExhausted {
		t.Errorf("run verdict = %v, want EXHAUSTED", ex.Verdict())
	}
	if last := ex.History[len(ex.History)-1]; last.Verdict != VerdictRetryExecFailed {
		t.Errorf("final attempt verdict = %v, want the retry reason", last.Verdict)
	}
}

func TestRun_AttemptSequences(t *testing.T) {
	fail := sandbox.Result{ExitCode: 1, Stderr: "bad flag"}
	tests := []struct {
		name        string
		results     []sandbox.Result
		wantCommand string
		wantErr     bool
		wantVerdict Verdict
	}{
		{
			name:        "accepted on the last attempt",
			results:     []sandbox.Result{fail, fail, {Stdout: words(10)}},
			wantCommand: "cmd-3",
		},
		{
			name:        "always too verbose",
			results:     []sandbox.Result{{Stdout: words(5001)}, {Stdout: words(5001)}, {Stdout: words(5001)}},
			wantErr:     true,
			wantVerdict: VerdictRetryTooVerbose,
		},
		{
			name:        "always failing",
			results:     []sandbox.Result{fail, fail, fail},
			wantErr:     true,
			wantVerdict: VerdictRetryExecFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &scriptedSynth{commands: []string{"cmd-1", "cmd-2", "cmd-3"}}
			exec := &scriptedExec{results: map[string]sandbox.Result{}}
			for i, res := range tt.results {
				exec.results[synth.commands[i]] = res
			}

			out, err := NewLoop(&fakeRetriever{}, synth, exec, Options{MaxAttempts: 3}).Run(context.Background(), "task")
			if tt.wantErr {
				var ex *AttemptsExhaustedError
				if !errors.As(err, &ex) {
					t.Fatalf("err = %v, want AttemptsExhaustedError", err)
				}
				if ex.Attempts != 3 || ex.LastCommand != "cmd-3" || ex.LastVerdict != tt.wantVerdict {
					t.Errorf("exhausted = %+v", ex)
				}
			} else {
				if err != nil {
					t.Fatalf("Run: %v", err)
				}
				if out.Command != tt.wantCommand {
					t.Errorf("command = %q, want %q", out.Command, tt.wantCommand)
				}
			}

			if len(synth.priorErrors) != 3 {
				t.Fatalf("synthesizer called %d times, want 3", len(synth.priorErrors))
			}
			if synth.priorErrors[0] != "" {
				t.Errorf("attempt 1 prior error = %q, want empty", synth.priorErrors[0])
			}
			for i := 1; i < 3; i++ {
				if synth.priorErrors[i] == "" {
					t.Errorf("attempt %d prior error is empty", i+1)
				}
			}
		})
	}
}

func TestRun_TooVerboseThenAccepted(t *testing.T) {
	synth := &scriptedSynth{commands: []string{"loud", "quiet"}}
	exec := &scriptedExec{results: map[string]sandbox.Result{
		"loud":  {Stdout: words(5001)},
		"quiet": {Stdout: words(5000)},
	}}

	out, err := NewLoop(&fakeRetriever{}, synth, exec, Options{}).Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Command != "quiet" {
		t.Errorf("command = %q", out.Command)
	}
	if out.Attempts[0].Verdict != VerdictRetryTooVerbose {
		t.Errorf("first verdict = %v", out.Attempts[0].Verdict)
	}
	if !strings.Contains(synth.priorErrors[1], "5001") {
		t.Errorf("verbosity feedback = %q", synth.priorErrors[1])
	}
}

func TestRun_TimeoutIsRetryable(t *testing.T) {
	synth := &scriptedSynth{commands: []string{"slow", "fast"}}
	exec := &scriptedExec{results: map[string]sandbox.Result{
		"slow": {ExitCode: -1, TimedOut: true, Stdout: "partial", Stderr: "command timed out after 2m0s"},
		"fast": {Stdout: "done"},
	}}

	out, err := NewLoop(&fakeRetriever{}, synth, exec, Options{}).Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(synth.priorErrors[1], "timed out") {
		t.Errorf("prior error = %q", synth.priorErrors[1])
	}
	if !strings.Contains(synth.priorErrors[1], "partial") {
		t.Errorf("partial output missing from prior error %q", synth.priorErrors[1])
	}
	if out.Attempts[0].Verdict != VerdictRetryExecFailed {
		t.Errorf("verdict = %v", out.Attempts[0].Verdict)
	}
}

func TestRun_ProviderErrorIsFatal(t *testing.T) {
	perr := &engine.ProviderError{Backend: "openrouter", Op: "chat", Err: errors.New("401")}
	synth := &scriptedSynth{err: perr}
	exec := &scriptedExec{}

	_, err := NewLoop(&fakeRetriever{}, synth, exec, Options{}).Run(context.Background(), "task")
	if !engine.IsProviderError(err) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if len(synth.priorErrors) != 1 {
		t.Errorf("synthesizer called %d times, want 1", len(synth.priorErrors))
	}
	if len(exec.ran) != 0 {
		t.Errorf("executed %v after provider failure", exec.ran)
	}
}

func TestRun_StoreEmptyIsFatal(t *testing.T) {
	synth := &scriptedSynth{commands: []string{"x"}}
	_, err := NewLoop(&fakeRetriever{err: retrieval.ErrStoreEmpty}, synth, &scriptedExec{}, Options{}).Run(context.Background(), "task")
	if !errors.Is(err, retrieval.ErrStoreEmpty) {
		t.Fatalf("err = %v, want ErrStoreEmpty", err)
	}
	if len(synth.priorErrors) != 0 {
		t.Error("synthesizer called with an empty store")
	}
}

func TestRun_EmptyTask(t *testing.T) {
	if _, err := NewLoop(&fakeRetriever{}, &scriptedSynth{}, &scriptedExec{}, Options{}).Run(context.Background(), "  "); !errors.Is(err, ErrEmptyTask) {
		t.Errorf("err = %v, want ErrEmptyTask", err)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoop(&fakeRetriever{}, &scriptedSynth{commands: []string{"x"}}, &scriptedExec{}, Options{}).Run(ctx, "task")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := NewLoop(nil, nil, nil, Options{}).Options()
	if o.MaxAttempts != 3 || o.MaxWords != 5000 || o.TopK != 3 || o.ExecTimeout != sandbox.DefaultTimeout {
		t.Errorf("defaults = %+v", o)
	}
}
