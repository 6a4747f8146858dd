package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codeindex/internal/config"
	"codeindex/internal/embedder"
	"codeindex/internal/mcp"
	"codeindex/internal/orchestrator"
	"codeindex/internal/state"
	"codeindex/internal/vectorstore"
	"codeindex/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Log to stderr (stdout is reserved for the MCP protocol).
	log.SetOutput(os.Stderr)

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "codeindex",
		Short: "Workspace indexer with semantic search over an MCP server",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newIndexCommand())
	root.AddCommand(newWatchCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// commonFlags are shared by the serve, index, and watch commands.
type commonFlags struct {
	workspace string
	dataDir   string
	provider  string
	debounce  time.Duration
	workers   int
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.workspace, "workspace", "w", ".", "workspace root to index")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "directory for the index database and fingerprint cache")
	cmd.Flags().StringVar(&f.provider, "provider", "", "embedding provider (openai or local)")
	cmd.Flags().DurationVar(&f.debounce, "debounce", 0, "watcher quiet period")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent embedding workers during a full scan")
}

// resolve merges flags over the workspace config file. Flags win.
func (f *commonFlags) resolve() (config.Config, error) {
	root, err := filepath.Abs(f.workspace)
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve workspace path: %w", err)
	}

	cfg, err := config.LoadWorkspace(root)
	if err != nil {
		return config.Config{}, err
	}
	cfg.Workspace = root
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(root, ".codeindex")
	}
	if f.provider != "" {
		cfg.Provider = f.provider
	}
	if f.debounce > 0 {
		cfg.DebounceMS = int(f.debounce / time.Millisecond)
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	return cfg, nil
}

// buildOrchestrator wires the store, embedder, and state manager for one
// workspace.
func buildOrchestrator(cfg config.Config) (*orchestrator.Orchestrator, error) {
	var emb embedder.Embedder
	var err error
	if cfg.Provider != "" {
		emb, err = embedder.New(embedder.Config{
			Provider: cfg.Provider,
			APIKey:   os.Getenv(embedder.EnvOpenAIAPIKey),
		})
	} else {
		emb, err = embedder.NewFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}
	log.Printf("embedding provider: %s (dimension %d)", emb.Name(), emb.Dimension())

	store := vectorstore.NewSQLite(filepath.Join(cfg.DataDir, "codeindex.db"))

	states := state.NewManager()
	states.OnStateChange(func(ch state.Change) {
		log.Printf("state: %s (%s)", ch.Status, ch.Message)
	})

	orch := orchestrator.New(orchestrator.Config{
		Configured:    true,
		WorkspaceRoot: cfg.Workspace,
		IgnoreRules:   cfg.IgnoreRules,
		DataDir:       cfg.DataDir,
		Debounce:      cfg.Debounce(),
		Workers:       cfg.Workers,
	}, store, emb, states)
	return orch, nil
}

func newServeCommand() *cobra.Command {
	flags := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			orch, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}

			server := mcp.NewServer(orch)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() {
				log.Printf("codeindex v%s ready, listening on stdio (driver %s, %s build)",
					version, vectorstore.DriverName, vectorstore.BuildMode)
				errChan <- server.Serve(ctx)
			}()

			select {
			case sig := <-sigChan:
				log.Printf("received signal %v, shutting down", sig)
				cancel()
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
	flags.register(cmd)
	return cmd
}

func newIndexCommand() *cobra.Command {
	flags := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the workspace once and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			orch, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer orch.StopWatcher()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := orch.StartIndexing(ctx); err != nil {
				return err
			}

			status, message := orch.States().State()
			progress := orch.States().Progress()
			log.Printf("done: %s (%s), processed %d, failed %d",
				status, message, progress.Processed, progress.Failed)
			if status == state.StatusError {
				return fmt.Errorf("indexing failed: %s", message)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newWatchCommand() *cobra.Command {
	flags := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Index the workspace and keep it in sync until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			orch, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer orch.StopWatcher()

			orch.States().OnBatchEvent(func(ev types.BatchEvent) {
				log.Printf("batch %s: %s (%d files)", ev.BatchID, ev.Phase, ev.Count)
			})

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := orch.StartIndexing(ctx); err != nil {
				return err
			}
			if status, message := orch.States().State(); status == state.StatusError {
				return fmt.Errorf("indexing failed: %s", message)
			}

			log.Printf("watching %s for changes", cfg.Workspace)
			<-ctx.Done()
			log.Println("shutting down")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("codeindex %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
			fmt.Printf("Build Mode: %s\n", vectorstore.BuildMode)
			fmt.Printf("SQLite Driver: %s\n", vectorstore.DriverName)
		},
	}
}
