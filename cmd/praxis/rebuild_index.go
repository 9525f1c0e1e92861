package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praxishq/praxis"
	"github.com/praxishq/praxis/internal/log"
)

func rebuildIndexCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "rebuild-index",
		Short: "Rebuild the vector index from stored embeddings",
		Long: `Rebuild the vector index from stored embeddings.

Drops the in-memory index, reloads every embedding stored for the active
model version, and writes a fresh snapshot. Use after restoring a database
backup or when the snapshot on disk is suspect.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRebuildIndex(cmd.Context(), envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runRebuildIndex(ctx context.Context, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := log.New(log.ParseFormat(cfg.LogFormat()), cfg.LogLevel())

	opts := append(praxis.OptionsFromAppConfig(cfg),
		praxis.WithLogger(logger),
		praxis.WithoutWorker(),
	)
	client, err := praxis.New(opts...)
	if err != nil {
		return fmt.Errorf("create praxis client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close praxis client", "error", err)
		}
	}()

	if err := client.RebuildIndex(ctx); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	logger.Info("index rebuilt")
	return nil
}
