package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/aist/internal/api"
	"github.com/kalambet/aist/internal/pipeline"
	"github.com/kalambet/aist/internal/retrieval"
)

// errReported marks failures whose details were already printed.
var errReported = errors.New("failure already reported")

// maxDetailLines bounds how much captured error text a progress line shows.
const maxDetailLines = 6

// progressPrinter renders loop progress on stderr.
type progressPrinter struct {
	maxAttempts int
}

func (p progressPrinter) OnState(attempt int, state pipeline.State) {
	switch state {
	case pipeline.StateGenerating:
		printStep("Attempt %d/%d: generating command", attempt, p.maxAttempts)
	case pipeline.StateRetrying:
		printStep("Retrying with the error as feedback")
	}
}

func (p progressPrinter) OnAttempt(a pipeline.Attempt) {
	printStatus("Running", "%s", a.Command)
	switch a.Verdict {
	case pipeline.VerdictAccepted:
		printSuccess("Accepted (exit 0, %d words)", pipeline.WordCount(a.Result.Stdout))
	case pipeline.VerdictRetryTooVerbose:
		printWarning("Output too long (%d words)", pipeline.WordCount(a.Result.Stdout))
	case pipeline.VerdictRetryExecFailed:
		switch {
		case a.Result.Rejected:
			printWarning("Rejected by the safety guard")
		case a.Result.TimedOut:
			printWarning("Timed out after %s", a.Result.Duration.Round(time.Millisecond))
		default:
			printWarning("Failed with exit status %d", a.Result.ExitCode)
		}
		printDetail(lastLines(a.Feedback, maxDetailLines))
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func runTask(cmd *cobra.Command, task string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(slog.LevelWarn)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureReady(ctx, stderr); err != nil {
		return err
	}
	loop, err := a.newLoop()
	if err != nil {
		return err
	}
	loop.WithObserver(progressPrinter{maxAttempts: loop.Options().MaxAttempts})

	return generate(ctx, cmd.OutOrStdout(), loop, a.analyzeFunc(), task)
}

type analyzeFn func(ctx context.Context, command, output string) (string, error)

// analyzeFunc returns nil when analysis is disabled.
func (a *app) analyzeFunc() analyzeFn {
	if noAnalysis {
		return nil
	}
	return func(ctx context.Context, command, output string) (string, error) {
		an, err := a.newAnalyzer()
		if err != nil {
			return "", err
		}
		return an.Analyze(ctx, command, output)
	}
}

// generate runs the loop for task and prints the accepted command, its
// output and, when analyze is set, the summary.
func generate(ctx context.Context, w io.Writer, g api.Generator, analyze analyzeFn, task string) error {
	out, err := g.Run(ctx, task)
	if err != nil {
		var exhausted *pipeline.AttemptsExhaustedError
		switch {
		case errors.As(err, &exhausted):
			printError("No working command after %d attempts", exhausted.Attempts)
			printStatus("Last command", "%s", exhausted.LastCommand)
			printDetail(lastLines(exhausted.LastError, maxDetailLines))
			return errReported
		case errors.Is(err, retrieval.ErrStoreEmpty):
			return fmt.Errorf("%w: add examples with 'aist examples add' or 'aist examples import'", err)
		default:
			return err
		}
	}

	fmt.Fprintln(w, out.Command)
	if strings.TrimSpace(out.Stdout) != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, out.Stdout)
		if !strings.HasSuffix(out.Stdout, "\n") {
			fmt.Fprintln(w)
		}
	}

	if analyze == nil {
		return nil
	}
	printStep("Analyzing output")
	summary, err := analyze(ctx, out.Command, out.Stdout)
	if err != nil {
		return fmt.Errorf("analyzing output: %w", err)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, colorize(colorBold, "--- Analysis ---"))
	fmt.Fprintln(w, summary)
	return nil
}
