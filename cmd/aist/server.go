package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/aist/internal/api"
	"github.com/kalambet/aist/internal/config"
	"github.com/kalambet/aist/internal/engine"
	"github.com/kalambet/aist/internal/ollama"
	"github.com/kalambet/aist/internal/retrieval"
	"github.com/kalambet/aist/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the example store and generator over HTTP (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running aist server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend, models, example count and server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "aist.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(stderr, "aist version %s\n", version)

	cfg, err := loadConfig(slog.LevelDebug)
	if err != nil {
		return err
	}

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice: the health endpoint answers if another instance holds the port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	client := &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	if client.healthy(context.Background()) {
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("aist is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("aist is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			printWarning("closing storage: %v", err)
		}
	}()

	if err := a.ensureReady(ctx, stderr); err != nil {
		return err
	}
	if err := a.retriever.Load(ctx); err != nil {
		if !errors.Is(err, retrieval.ErrStoreEmpty) {
			return fmt.Errorf("loading example index: %w", err)
		}
		slog.Warn("example store is empty; generation will fail until examples are added")
	}

	loop, err := a.newLoop()
	if err != nil {
		return err
	}
	gen := api.Serialize(loop)

	handler := api.NewAppHandler(api.AppDeps{
		Store:     a.store,
		Examples:  a.examples,
		Retriever: a.retriever,
		Generator: gen,
		Token:     apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Examples:  a.examples,
			Retriever: a.retriever,
			Generator: gen,
			Version:   version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(stderr, "aist listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := loadLocalConfig()
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("aist is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("could not stop aist (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to aist (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := loadLocalConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		printWarning("config: %v", err)
	}

	printStatus("Backend", "%s", cfg.Generation.Backend)
	printStatus("Generation model", "%s", cfg.Generation.Model)
	printStatus("Analysis model", "%s", cfg.Generation.AnalysisModel)
	printStatus("Embedding model", "%s", cfg.Embedding.Model)

	switch cfg.Generation.Backend {
	case engine.BackendOllama:
		if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running at %s", cfg.Ollama.BaseURL)
		}
	default:
		if cfg.OpenRouter.APIKey != "" {
			printStatus("OpenRouter", "API key configured")
		} else {
			printStatus("OpenRouter", "API key missing")
		}
	}

	if store, err := storage.Open(cfg.Storage.DataDir); err != nil {
		printStatus("Examples", "unavailable (%v)", err)
	} else {
		n, err := store.CountExamples(ctx)
		dim, _ := store.EmbeddingDimension(ctx)
		store.Close()
		if err != nil {
			printStatus("Examples", "unavailable (%v)", err)
		} else {
			printStatus("Examples", "%d (dimension %d)", n, dim)
		}
	}

	client, err := newAPIClient(cfg)
	if err != nil {
		printStatus("Server", "unknown (%v)", err)
	} else if client.healthy(ctx) {
		printStatus("Server", "running on port %d", cfg.Server.Port)
	} else {
		printStatus("Server", "stopped")
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
