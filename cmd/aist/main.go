package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/aist/internal/config"
)

var version = "dev"

var (
	noColor    bool
	noAnalysis bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "aist <task>",
	Short: "Turn a plain-language recon task into a working ffuf command",
	Long: `aist retrieves curated ffuf examples similar to the task, asks the
generation model for a command, runs it, and retries with the error until
the command succeeds with a reasonably sized output.

Examples:
  aist "find hidden directories on http://10.10.10.5"
  aist --no-analysis "enumerate vhosts for target.htb using subdomains.txt"`,
	Version:       version,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			noColor = true
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(cmd, args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every attempt at debug level")
	rootCmd.Flags().BoolVar(&noAnalysis, "no-analysis", false, "skip the summary of the accepted command's output")

	rootCmd.AddCommand(examplesCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			printError("%v", err)
		}
		os.Exit(1)
	}
}

// parseLevel maps a log.level value onto a slog level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging installs the default slog handler on stderr. Interactive
// commands pass slog.LevelWarn as floor so that progress lines are not
// interleaved with info logs; --verbose lifts the floor.
func setupLogging(cfg config.Config, floor slog.Level) {
	level := parseLevel(cfg.Log.Level)
	if level < floor {
		level = floor
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func loadConfig(floor slog.Level) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg, floor)
	return cfg, nil
}

// loadLocalConfig is loadConfig for commands that never reach the
// generation provider, so a missing API key is not an error.
func loadLocalConfig() (config.Config, error) {
	cfg, err := config.LoadRaw()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg, slog.LevelWarn)
	return cfg, nil
}
