package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/praxishq/praxis"
	"github.com/praxishq/praxis/infrastructure/api"
	v1 "github.com/praxishq/praxis/infrastructure/api/v1"
	"github.com/praxishq/praxis/internal/config"
	"github.com/praxishq/praxis/internal/log"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables (all PRAXIS_-prefixed):
  PRAXIS_HOST                  Server host to bind to (default: 0.0.0.0)
  PRAXIS_PORT                  Server port to listen on (default: 8080)
  PRAXIS_DATA_DIR              Data directory (default: ~/.praxis)
  PRAXIS_DB_URL                Database URL (default: sqlite:///{data_dir}/praxis.db)
  PRAXIS_LOG_LEVEL             Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  PRAXIS_LOG_FORMAT            Log format: pretty, json (default: pretty)
  PRAXIS_MODEL_DIR             Local embedding model directory

  PRAXIS_EMBEDDING_ENDPOINT_*  Remote embedding service (BASE_URL, MODEL, API_KEY, TIMEOUT)
  PRAXIS_RERANKER_ENDPOINT_*   Remote reranker service (same fields)

  PRAXIS_PRIMARY_PROVIDER      Search provider: vector, text (default: auto)
  PRAXIS_FALLBACK_ENABLED      Text fallback when the primary fails (default: true)
  PRAXIS_MAX_RETRIES           Per-provider retry count (default: 1)
  PRAXIS_TOPK_RETRIEVE         Vector retrieval breadth (default: 100)
  PRAXIS_TOPK_RERANK           Rerank fan-in (default: 40)
  PRAXIS_DUPLICATE_TIMEOUT_MS  Duplicate probe deadline (default: 750)

  PRAXIS_LEASE_TTL_SECONDS     Embedding worker lease TTL (default: 30)
  PRAXIS_POLL_INTERVAL_SECONDS Worker poll interval (default: 5)
  PRAXIS_BATCH_SIZE            Records claimed per worker iteration (default: 16)

  PRAXIS_SAVE_POLICY           Index snapshot policy (default: every_n)
  PRAXIS_SAVE_EVERY            Mutations between snapshots (default: 64)`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := log.New(log.ParseFormat(cfg.LogFormat()), cfg.LogLevel())
	logger.Info("starting praxis", "version", version, "addr", cfg.Addr())

	opts := append(praxis.OptionsFromAppConfig(cfg), praxis.WithLogger(logger))
	client, err := praxis.New(opts...)
	if err != nil {
		return fmt.Errorf("create praxis client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close praxis client", "error", err)
		}
	}()

	server := api.NewServer(cfg.Addr(), logger)
	handlers := v1.NewHandlers(client.Search, client.Writer, client.Records, client.Worker, logger)
	handlers.Register(server.Router())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
