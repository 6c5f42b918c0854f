// Package cmd provides the CLI commands for memsearch.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/memsearch/memsearch/internal/chunk"
	"github.com/memsearch/memsearch/internal/config"
	"github.com/memsearch/memsearch/internal/embed"
	"github.com/memsearch/memsearch/internal/index"
	"github.com/memsearch/memsearch/internal/logging"
	"github.com/memsearch/memsearch/internal/store"
	"github.com/memsearch/memsearch/pkg/version"
)

// rootFlags are persistent overrides applied on top of the layered config.
type rootFlags struct {
	debug    bool
	provider string
	model    string
	storeURI string
}

var flags rootFlags

// Execute runs the CLI with signal-aware context cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewRootCmd creates the root command for the memsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memsearch",
		Short: "Incremental semantic search over markdown notes",
		Long: `memsearch keeps a vector index in sync with a directory of markdown
notes. Files are chunked by heading, chunks are embedded, and only
changed chunks are re-embedded on subsequent runs.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// A missing .env is normal.
			_ = godotenv.Load()

			level := "info"
			if flags.debug {
				level = "debug"
			}
			logging.Setup(logging.Config{Level: level})
		},
	}
	cmd.SetVersionTemplate("memsearch version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.provider, "provider", "", "Embedding provider override (openai, google, voyage, ollama, static)")
	pf.StringVar(&flags.model, "model", "", "Embedding model override")
	pf.StringVar(&flags.storeURI, "store", "", "Store URI override (path or http(s) endpoint)")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newExpandCmd())
	cmd.AddCommand(newCompactCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig layers files and applies persistent flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if flags.provider != "" {
		cfg.Embedding.Provider = flags.provider
	}
	if flags.model != "" {
		cfg.Embedding.Model = flags.model
	}
	if flags.storeURI != "" {
		cfg.Store.URI = flags.storeURI
	}
	return cfg, nil
}

// session bundles the wired components behind one Close.
type session struct {
	cfg      config.Config
	embedder embed.Embedder
	store    store.VectorStore
	engine   *index.Engine
}

// openSession builds the embedder, the store (pinned to the embedder's
// dimension) and the sync engine.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	embedder, err := embed.New(ctx, embed.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{
		URI:        cfg.ExpandedStoreURI(),
		Collection: cfg.Store.Collection,
		Dimensions: embedder.Dimensions(),
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	engine := index.New(index.Config{
		Chunker: chunk.NewWithOptions(chunk.Options{
			MaxChunkSize: cfg.Chunking.MaxChunkSize,
			OverlapLines: cfg.Chunking.OverlapLines,
		}),
		Embedder: embedder,
		Store:    st,
	})

	return &session{cfg: cfg, embedder: embedder, store: st, engine: engine}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close store: %v\n", err)
	}
	_ = s.embedder.Close()
}
