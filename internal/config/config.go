//-------------------------------------------------------------------------
//
// pgEdge Storage Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-storebench.
// Values come from CLI flags, STOREBENCH_* environment variables (optionally
// loaded from a .env file), a config file and defaults, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pgEdge/pgedge-storebench/internal/bench"
	"github.com/pgEdge/pgedge-storebench/internal/seed"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STOREBENCH"

// DefaultEnvFile is loaded when present and no other env file is given.
const DefaultEnvFile = ".env"

// Config holds all configuration for pgedge-storebench.
type Config struct {
	// Backend is the storage backend to use (postgres, mongodb, memory).
	Backend string `mapstructure:"backend"`

	// PostgresURL is the PostgreSQL connection string.
	PostgresURL string `mapstructure:"postgres_url"`

	// MongoDBURL is the MongoDB connection string.
	MongoDBURL string `mapstructure:"mongodb_url"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Seed holds configuration for the seed subcommand.
	Seed SeedConfig `mapstructure:"seed"`

	// Bench holds configuration for the bench subcommand.
	Bench BenchConfig `mapstructure:"bench"`
}

// SeedConfig holds configuration for seeding.
type SeedConfig struct {
	CustomerCount int `mapstructure:"customer_count"`
	ProductCount  int `mapstructure:"product_count"`

	// OrderCount of -1 uses the backend's reference profile.
	OrderCount int `mapstructure:"order_count"`

	BatchSize      int `mapstructure:"batch_size"`
	OrderBatchSize int `mapstructure:"order_batch_size"`

	ProgressInterval        int64 `mapstructure:"progress_interval"`
	ProductProgressInterval int64 `mapstructure:"product_progress_interval"`
	OrderProgressInterval   int64 `mapstructure:"order_progress_interval"`

	EmailDomain string `mapstructure:"email_domain"`

	// Workers is the number of order-building workers.
	Workers int `mapstructure:"workers"`

	// Parallel seeds customers and products concurrently.
	Parallel bool `mapstructure:"parallel"`

	// RandomSeed makes runs reproducible; 0 seeds from the clock.
	RandomSeed uint64 `mapstructure:"random_seed"`
}

// BenchConfig holds configuration for the benchmark query.
type BenchConfig struct {
	WindowDays  int    `mapstructure:"window_days"`
	EmailSuffix string `mapstructure:"email_suffix"`
	TopN        int    `mapstructure:"top_n"`
	Iterations  int    `mapstructure:"iterations"`
	Warmup      int    `mapstructure:"warmup"`
	Concurrency int    `mapstructure:"concurrency"`

	// ReportInterval is how often to print statistics (in seconds, 0 = off).
	ReportInterval int `mapstructure:"report_interval"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	s := seed.DefaultConfig()
	b := bench.DefaultConfig()
	return &Config{
		Backend:  "postgres",
		LogLevel: "info",
		Seed: SeedConfig{
			CustomerCount:           s.CustomerCount,
			ProductCount:            s.ProductCount,
			OrderCount:              -1,
			BatchSize:               s.BatchSize,
			OrderBatchSize:          s.OrderBatchSize,
			ProgressInterval:        s.ProgressInterval,
			ProductProgressInterval: s.ProductProgressInterval,
			OrderProgressInterval:   s.OrderProgressInterval,
			EmailDomain:             s.EmailDomain,
			Workers:                 s.Workers,
		},
		Bench: BenchConfig{
			WindowDays:  b.Query.WindowDays,
			EmailSuffix: b.Query.EmailSuffix,
			TopN:        b.Query.TopN,
			Iterations:  b.Iterations,
			Warmup:      b.Warmup,
			Concurrency: b.Concurrency,
		},
	}
}

// setDefaults registers every key with viper so that environment variables
// are considered during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("postgres_url", cfg.PostgresURL)
	v.SetDefault("mongodb_url", cfg.MongoDBURL)
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetDefault("seed.customer_count", cfg.Seed.CustomerCount)
	v.SetDefault("seed.product_count", cfg.Seed.ProductCount)
	v.SetDefault("seed.order_count", cfg.Seed.OrderCount)
	v.SetDefault("seed.batch_size", cfg.Seed.BatchSize)
	v.SetDefault("seed.order_batch_size", cfg.Seed.OrderBatchSize)
	v.SetDefault("seed.progress_interval", cfg.Seed.ProgressInterval)
	v.SetDefault("seed.product_progress_interval", cfg.Seed.ProductProgressInterval)
	v.SetDefault("seed.order_progress_interval", cfg.Seed.OrderProgressInterval)
	v.SetDefault("seed.email_domain", cfg.Seed.EmailDomain)
	v.SetDefault("seed.workers", cfg.Seed.Workers)
	v.SetDefault("seed.parallel", cfg.Seed.Parallel)
	v.SetDefault("seed.random_seed", cfg.Seed.RandomSeed)

	v.SetDefault("bench.window_days", cfg.Bench.WindowDays)
	v.SetDefault("bench.email_suffix", cfg.Bench.EmailSuffix)
	v.SetDefault("bench.top_n", cfg.Bench.TopN)
	v.SetDefault("bench.iterations", cfg.Bench.Iterations)
	v.SetDefault("bench.warmup", cfg.Bench.Warmup)
	v.SetDefault("bench.concurrency", cfg.Bench.Concurrency)
	v.SetDefault("bench.report_interval", cfg.Bench.ReportInterval)
}

// Load reads configuration from the environment and config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-storebench.yaml
// 3. ~/.config/pgedge-storebench/config.yaml
//
// envFile names a dotenv file whose variables are added to the environment
// without overriding variables that are already set. An empty envFile
// loads ./.env if it exists.
func Load(configFile, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set config name and type
	v.SetConfigName("pgedge-storebench")
	v.SetConfigType("yaml")

	// Add config paths
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-storebench"))
	}

	// Use specific config file if provided
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Environment: STOREBENCH_SEED_CUSTOMER_COUNT -> seed.customer_count
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Start with defaults
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

func loadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	err := godotenv.Load(envFile)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("error loading env file %s: %w", envFile, err)
}

// URL returns the connection string of the selected backend.
func (c *Config) URL() string {
	switch c.Backend {
	case "postgres":
		return c.PostgresURL
	case "mongodb":
		return c.MongoDBURL
	}
	return ""
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("backend is required")
	}
	if _, err := store.Get(c.Backend); err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(store.List(), ", "))
	}
	switch c.Backend {
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres_url is required for the postgres backend")
		}
	case "mongodb":
		if c.MongoDBURL == "" {
			return fmt.Errorf("mongodb_url is required for the mongodb backend")
		}
	}
	return nil
}

// ValidateSeed checks configuration required for the seed command.
func (c *Config) ValidateSeed() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Seed.OrderCount < -1 {
		return fmt.Errorf("order_count must be -1 (backend default) or non-negative")
	}
	return c.SeedSettings(0).Validate()
}

// ValidateBench checks configuration required for the bench command.
func (c *Config) ValidateBench() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Bench.ReportInterval < 0 {
		return fmt.Errorf("report_interval must be non-negative")
	}
	return c.BenchSettings().Validate()
}

// ResolveOrderCount returns the configured order count, or profileDefault
// when the configured count is -1.
func (c *Config) ResolveOrderCount(profileDefault int) int {
	if c.Seed.OrderCount < 0 {
		return profileDefault
	}
	return c.Seed.OrderCount
}

// SeedSettings converts the seed section into a seeding configuration.
func (c *Config) SeedSettings(profileOrders int) seed.Config {
	return seed.Config{
		CustomerCount:           c.Seed.CustomerCount,
		ProductCount:            c.Seed.ProductCount,
		OrderCount:              c.ResolveOrderCount(profileOrders),
		BatchSize:               c.Seed.BatchSize,
		OrderBatchSize:          c.Seed.OrderBatchSize,
		ProgressInterval:        c.Seed.ProgressInterval,
		ProductProgressInterval: c.Seed.ProductProgressInterval,
		OrderProgressInterval:   c.Seed.OrderProgressInterval,
		EmailDomain:             c.Seed.EmailDomain,
		Workers:                 c.Seed.Workers,
		Parallel:                c.Seed.Parallel,
		Seed:                    c.Seed.RandomSeed,
	}
}

// BenchSettings converts the bench section into a timer configuration.
func (c *Config) BenchSettings() bench.Config {
	return bench.Config{
		Query: store.BenchmarkQuery{
			WindowDays:  c.Bench.WindowDays,
			EmailSuffix: c.Bench.EmailSuffix,
			TopN:        c.Bench.TopN,
		},
		Warmup:         c.Bench.Warmup,
		Iterations:     c.Bench.Iterations,
		Concurrency:    c.Bench.Concurrency,
		ReportInterval: time.Duration(c.Bench.ReportInterval) * time.Second,
	}
}

// MaxConns returns the connection pool size needed by the configured
// workers and benchmark concurrency.
func (c *Config) MaxConns() int {
	return max(c.Seed.Workers, c.Bench.Concurrency, 1) + 2
}
