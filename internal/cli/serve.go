package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/engine"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/server"
	"github.com/lorekeep/lorekeep/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := buildEngine(db, cfg)
	if err != nil {
		return err
	}
	eng.StartBackground()
	defer eng.Stop()

	// Catch up on any memories stored while embedding was down
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if n, err := eng.BackfillVectors(ctx, 500); err != nil {
			fmt.Fprintf(os.Stderr, "vector backfill: %v\n", err)
		} else if n > 0 {
			fmt.Fprintf(os.Stderr, "  backfilled %d vectors\n", n)
		}
	}()

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "lorekeep serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

// openDB resolves the database path and opens the store.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// buildEngine wires the configured LLM and embedder into an engine. A
// missing LLM disables extraction but leaves retrieval fully working.
func buildEngine(db *store.DB, cfg config.Config) (*engine.Engine, error) {
	var client llm.Client
	if c, err := llm.NewClient(cfg.LLM); err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), extraction disabled\n", err)
	} else {
		client = c
		fmt.Fprintf(os.Stderr, "  llm: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	}

	eng := engine.New(db, client, cfg.Engine)

	emb, err := engine.NewEmbedder(cfg.Embedding, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: embedder unavailable (%v), falling back to tfidf\n", err)
		emb, err = engine.NewTFIDFEmbedder(db, 512)
		if err != nil {
			return nil, fmt.Errorf("tfidf embedder: %w", err)
		}
	}
	eng.SetEmbedder(emb)
	fmt.Fprintf(os.Stderr, "  embedder: %s\n", emb.Model())

	return eng, nil
}
