package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/aist/internal/seed"
	"github.com/kalambet/aist/internal/storage"
)

// --- examples ---

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Manage the curated example store",
}

var examplesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Embed and store one (description, command) example",
	Long: `Embed and store one example. Without flags the description and the
command are read from standard input.

Examples:
  aist examples add -d "fuzz GET parameters on /search" -c "ffuf -u 'http://t/search?FUZZ=x' -w params.txt -fs 0"
  aist examples add`,
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		command, _ := cmd.Flags().GetString("command")
		if description == "" || command == "" {
			var err error
			description, command, err = promptExample(cmd.InOrStdin(), cmd.ErrOrStderr(), description, command)
			if err != nil {
				return err
			}
		}

		cfg, err := loadConfig(slog.LevelWarn)
		if err != nil {
			return err
		}
		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ex, err := a.examples.Add(cmd.Context(), description, command)
		if err != nil {
			return fmt.Errorf("adding example: %w", err)
		}
		printSuccess("Example %d added (%d dimensions)", ex.ID, len(ex.Embedding))
		return nil
	},
}

// promptExample asks for whichever of description and command is missing.
func promptExample(in io.Reader, out io.Writer, description, command string) (string, string, error) {
	sc := bufio.NewScanner(in)
	ask := func(label string) (string, error) {
		fmt.Fprintf(out, "%s ", label)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		v := strings.TrimSpace(sc.Text())
		if v == "" {
			return "", fmt.Errorf("%s must not be empty", strings.TrimSuffix(strings.TrimPrefix(label, "Enter "), ":"))
		}
		return v, nil
	}

	var err error
	if description == "" {
		if description, err = ask("Enter description:"); err != nil {
			return "", "", err
		}
	}
	if command == "" {
		if command, err = ask("Enter ffuf command:"); err != nil {
			return "", "", err
		}
	}
	return description, command, nil
}

var examplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored examples",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		examples, err := store.ListExamples(cmd.Context())
		if err != nil {
			return err
		}
		if len(examples) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No examples stored.")
			return nil
		}
		for _, ex := range examples {
			writeExample(cmd.OutOrStdout(), ex.ID, ex.Description, ex.Command, "")
		}
		return nil
	},
}

func writeExample(w io.Writer, id int64, description, command, suffix string) {
	fmt.Fprintf(w, "%s %s%s\n", colorize(colorCyan, fmt.Sprintf("#%d", id)), description, suffix)
	fmt.Fprintf(w, "    %s\n", command)
}

var examplesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import examples from a .toml or .jsonl file",
	Long: `Import examples from a corpus file. Every example is embedded first and
the whole file is stored in one transaction: if any example fails, none
are stored.

TOML files use an array of tables:

  [[example]]
  description = "brute force directories on example.com"
  command = "ffuf -u https://example.com/FUZZ -w common.txt"

JSON Lines files hold one {"description": ..., "command": ...} per line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, err := seed.ReadFile(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig(slog.LevelWarn)
		if err != nil {
			return err
		}
		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("Embedding %d examples", len(pairs))
		added, err := a.examples.AddBatch(cmd.Context(), pairs)
		if err != nil {
			return fmt.Errorf("importing %s: %w", args[0], err)
		}
		printSuccess("Imported %d examples (ids %d-%d)", len(added), added[0].ID, added[len(added)-1].ID)
		return nil
	},
}

var examplesRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a stored example",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid example id %q", args[0])
		}

		cfg, err := loadLocalConfig()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		if err := store.DeleteExample(cmd.Context(), id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("example %d not found", id)
			}
			return err
		}
		printSuccess("Example %d removed", id)
		return nil
	},
}

func init() {
	examplesAddCmd.Flags().StringP("description", "d", "", "plain-language description of the task")
	examplesAddCmd.Flags().StringP("command", "c", "", "the ffuf command that accomplishes it")
	examplesCmd.AddCommand(examplesAddCmd)
	examplesCmd.AddCommand(examplesListCmd)
	examplesCmd.AddCommand(examplesImportCmd)
	examplesCmd.AddCommand(examplesRemoveCmd)
}

// --- recall ---

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Show the stored examples nearest to a task description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig(slog.LevelWarn)
		if err != nil {
			return err
		}
		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if limit <= 0 {
			limit = cfg.Retrieval.TopK
		}
		matches, err := a.retriever.Retrieve(cmd.Context(), query, limit)
		if err != nil {
			return err
		}
		for _, m := range matches {
			writeExample(cmd.OutOrStdout(), m.ID, m.Description, m.Command,
				colorize(colorDim, fmt.Sprintf("  [distance: %.4f]", m.Distance)))
		}
		return nil
	},
}

func init() {
	recallCmd.Flags().IntP("limit", "k", 0, "number of examples to show (default retrieval.top_k)")
}
