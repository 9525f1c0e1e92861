// Package main is the entry point for the praxis CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/praxishq/praxis/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "praxis",
		Short: "Praxis knowledge-base server",
		Long:  `Praxis stores experiences and skills and serves semantic search over them.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(rebuildIndexCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("praxis %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// loadConfig loads configuration from a .env file and environment
// variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
