package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/aist/internal/sandbox"
)

// Verdict is the classification of one attempt.
type Verdict int

const (
	VerdictAccepted Verdict = iota + 1
	VerdictRetryExecFailed
	VerdictRetryTooVerbose
	// VerdictExhausted classifies a run, not an attempt: Validate never
	// returns it, and the final attempt of an exhausted run keeps the retry
	// verdict that explains its failure. AttemptsExhaustedError.Verdict
	// reports it.
	VerdictExhausted
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "ACCEPTED"
	case VerdictRetryExecFailed:
		return "RETRY_EXEC_FAILED"
	case VerdictRetryTooVerbose:
		return "RETRY_TOO_VERBOSE"
	case VerdictExhausted:
		return "EXHAUSTED"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Retry reports whether v asks for another attempt.
func (v Verdict) Retry() bool {
	return v == VerdictRetryExecFailed || v == VerdictRetryTooVerbose
}

// State is a phase of the execution-validation loop.
type State int

const (
	StateGenerating State = iota + 1
	StateExecuting
	StateValidating
	StateRetrying
	StateAccepted
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateGenerating:
		return "GENERATING"
	case StateExecuting:
		return "EXECUTING"
	case StateValidating:
		return "VALIDATING"
	case StateRetrying:
		return "RETRYING"
	case StateAccepted:
		return "ACCEPTED"
	case StateExhausted:
		return "EXHAUSTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// maxFeedbackBytes caps the error text fed back into the next prompt. The
// tail is kept since shells and tools report the decisive error last.
const maxFeedbackBytes = 4000

// Validate classifies an execution result. Stderr output alone does not make
// an attempt fail: only a non-zero exit status (timeouts included) or more
// than maxWords words of stdout do. The returned feedback is the error text
// for the next prompt and is empty on acceptance.
func Validate(res sandbox.Result, maxWords int) (Verdict, string) {
	if res.Failed() {
		return VerdictRetryExecFailed, execFeedback(res)
	}
	if n := WordCount(res.Stdout); n > maxWords {
		return VerdictRetryTooVerbose, fmt.Sprintf(
			"The command succeeded but printed %d words, more than the limit of %d. "+
				"Produce a command whose output is more concise, for example by filtering "+
				"results or enabling a silent mode.", n, maxWords)
	}
	return VerdictAccepted, ""
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// execFeedback keeps the error text last. Stdout is prepended when the
// command timed out or wrote nothing to stderr.
func execFeedback(res sandbox.Result) string {
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("command exited with status %d and printed no error output", res.ExitCode)
	}
	if partial := strings.TrimSpace(res.Stdout); partial != "" && (res.TimedOut || strings.TrimSpace(res.Stderr) == "") {
		msg = "Output before the failure:\n" + partial + "\n\n" + msg
	}
	return tail(msg, maxFeedbackBytes)
}

// tail returns the last n bytes of s, starting on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
