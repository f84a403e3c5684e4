//-------------------------------------------------------------------------
//
// pgEdge Storage Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for pgedge-storebench.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-storebench/internal/config"
	"github.com/pgEdge/pgedge-storebench/internal/logging"
	"github.com/pgEdge/pgedge-storebench/internal/store"
	"github.com/pgEdge/pgedge-storebench/pkg/version"
)

var (
	// Global flags
	cfgFile     string
	envFile     string
	backendName string
	postgresURL string
	mongodbURL  string
	logLevel    string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "pgedge-storebench",
		Short: "Document vs relational storage benchmark",
		Long: `pgedge-storebench seeds the same customer, product and order data set
into PostgreSQL (normalized tables) or MongoDB (documents with embedded
order lines) and times an equivalent analytical query on each.

The data set is reproducible with --random-seed, and both backends enforce
the same constraints on the generated data.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./pgedge-storebench.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "",
		"dotenv file with STOREBENCH_* variables (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "",
		"storage backend (postgres, mongodb, memory)")
	rootCmd.PersistentFlags().StringVar(&postgresURL, "postgres-url", "",
		"PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&mongodbURL, "mongodb-url", "",
		"MongoDB connection string")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(benchCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile, envFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if backendName != "" {
		cfg.Backend = backendName
	}
	if postgresURL != "" {
		cfg.PostgresURL = postgresURL
	}
	if mongodbURL != "" {
		cfg.MongoDBURL = mongodbURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	// Console output on a terminal, JSON lines otherwise
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: logging.IsTerminal(os.Stderr),
	})

	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// openStore connects to the configured backend.
func openStore(ctx context.Context) (store.Store, store.Backend, error) {
	backend, err := store.Get(cfg.Backend)
	if err != nil {
		return nil, store.Backend{}, err
	}

	logging.Info().
		Str("backend", backend.Name).
		Int("max_conns", cfg.MaxConns()).
		Msg("Opening store")

	s, err := backend.Open(ctx, store.Options{URL: cfg.URL(), MaxConns: cfg.MaxConns()})
	if err != nil {
		return nil, backend, fmt.Errorf("failed to connect to %s: %w", backend.Name, err)
	}
	return s, backend, nil
}

func closeStore(s store.Store) {
	if err := s.Close(context.Background()); err != nil {
		logging.Warn().Err(err).Str("backend", s.Name()).Msg("Failed to close store")
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List available storage backends",
	Long: `List all registered storage backends together with the order count
of their reference profile, used when seed.order_count is -1.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("Available backends:")
		cmd.Println()
		for _, name := range store.List() {
			b, err := store.Get(name)
			if err != nil {
				continue
			}
			cmd.Printf("  %s - %s (default orders: %d)\n",
				color.GreenString("%-10s", b.Name), b.Description, b.DefaultOrderCount)
		}
		cmd.Println()
		cmd.Println("Use 'pgedge-storebench seed --backend <name>' to populate one.")
	},
}
