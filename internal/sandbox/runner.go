// Package sandbox runs generated shell commands under a hard time limit and
// captures what they print.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultTimeout        = 2 * time.Minute
	DefaultMaxOutputBytes = 8 << 20

	// waitDelay bounds how long Run waits for output pipes after the
	// process group has been killed.
	waitDelay = 2 * time.Second
)

// Result is the outcome of one command execution. A timed-out command has
// TimedOut set, a non-zero ExitCode and the partial output it produced.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	// Rejected is set when the guard refused to run the command.
	Rejected bool
	Duration time.Duration
}

// Failed reports whether the execution counts as a failure.
func (r Result) Failed() bool {
	return r.ExitCode != 0 || r.TimedOut || r.Rejected
}

// Options configures a Runner.
type Options struct {
	// Shell overrides the interpreter; empty selects /bin/sh (cmd on Windows).
	Shell string
	// Dir is the working directory; empty inherits the current one.
	Dir string
	// BlockHighRisk refuses destructive commands instead of running them.
	BlockHighRisk bool
	// MaxOutputBytes caps each of stdout and stderr.
	MaxOutputBytes int
}

// Runner executes commands through the system shell.
type Runner struct {
	opts Options
}

// NewRunner creates a Runner with opts, filling in defaults.
func NewRunner(opts Options) *Runner {
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return &Runner{opts: opts}
}

// Run executes command and waits for it to finish or for timeout to elapse,
// whichever comes first. On timeout the whole process group is killed.
// Execution problems are reported in the Result, never as an error: the
// caller decides whether a failed command is worth retrying.
func (r *Runner) Run(ctx context.Context, command string, timeout time.Duration) Result {
	res := Result{Command: command}
	if strings.TrimSpace(command) == "" {
		res.ExitCode = -1
		res.Stderr = "empty command"
		return res
	}
	if r.opts.BlockHighRisk {
		if pattern, risky := HighRisk(command); risky {
			res.ExitCode = -1
			res.Rejected = true
			res.Stderr = fmt.Sprintf("command rejected without running: it matches the high-risk pattern %q", pattern)
			return res
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell, args := shellInvocation(r.opts.Shell, command)
	cmd := exec.CommandContext(ctx, shell, args...)
	cmd.Dir = r.opts.Dir
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	stdout := newCappedBuffer(r.opts.MaxOutputBytes)
	stderr := newCappedBuffer(r.opts.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		res.Stderr = appendLine(res.Stderr, fmt.Sprintf("command timed out after %s", timeout))
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		// -1 when the process was killed by a signal.
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Stderr = appendLine(res.Stderr, err.Error())
	}
	return res
}

func appendLine(s, line string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s + line
	}
	return s + "\n" + line
}
