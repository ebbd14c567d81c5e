package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyTask is returned when the task description is blank.
var ErrEmptyTask = errors.New("task description is empty")

// AttemptsExhaustedError is returned when every attempt was rejected. It
// carries the last command tried and why it was rejected.
type AttemptsExhaustedError struct {
	Attempts    int
	LastCommand string
	LastError   string
	LastVerdict Verdict
	History     []Attempt
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("no acceptable command after %d attempts (last: %s): %q: %s",
		e.Attempts, e.LastVerdict, e.LastCommand, e.LastError)
}

// Verdict is the run-level verdict, always VerdictExhausted.
func (e *AttemptsExhaustedError) Verdict() Verdict { return VerdictExhausted }
