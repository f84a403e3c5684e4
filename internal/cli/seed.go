package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pgEdge/pgedge-storebench/internal/db"
	"github.com/pgEdge/pgedge-storebench/internal/logging"
	"github.com/pgEdge/pgedge-storebench/internal/seed"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

var (
	seedCustomers      int
	seedProducts       int
	seedOrders         int
	seedBatchSize      int
	seedOrderBatchSize int
	seedWorkers        int
	seedParallel       bool
	seedRandomSeed     uint64
	seedEmailDomain    string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset the schema and seed customers, products and orders",
	Long: `Drop and recreate the benchmark schema on the selected backend, then
seed customers and products followed by orders that reference them. Each
order line copies the price of its product at the time the order is built.

When --orders is not given, the backend's reference profile decides the
order count (see 'pgedge-storebench backends').

Example:
  pgedge-storebench seed --backend postgres --postgres-url "postgres://..."
  pgedge-storebench seed --backend mongodb --customers 5000 --orders 20000 --workers 4`,
	RunE: runSeed,
}

func init() {
	addSeedFlags(seedCmd.Flags())
}

// addSeedFlags registers the seeding flags; bench shares them for --seed.
func addSeedFlags(flags *pflag.FlagSet) {
	flags.IntVar(&seedCustomers, "customers", 0,
		"number of customers (default: 100000)")
	flags.IntVar(&seedProducts, "products", 0,
		"number of products (default: 1000)")
	flags.IntVar(&seedOrders, "orders", 0,
		"number of orders (default: backend profile)")
	flags.IntVar(&seedBatchSize, "batch-size", 0,
		"customer and product batch size (default: 1000)")
	flags.IntVar(&seedOrderBatchSize, "order-batch-size", 0,
		"order batch size (default: 10)")
	flags.IntVar(&seedWorkers, "workers", 0,
		"number of workers building orders (default: 1)")
	flags.BoolVar(&seedParallel, "parallel", false,
		"seed customers and products concurrently")
	flags.Uint64Var(&seedRandomSeed, "random-seed", 0,
		"seed for reproducible data (default: clock)")
	flags.StringVar(&seedEmailDomain, "email-domain", "",
		"domain of generated customer emails (default: example.com)")
}

func applySeedFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("customers") {
		cfg.Seed.CustomerCount = seedCustomers
	}
	if flags.Changed("products") {
		cfg.Seed.ProductCount = seedProducts
	}
	if flags.Changed("orders") {
		cfg.Seed.OrderCount = seedOrders
	}
	if seedBatchSize > 0 {
		cfg.Seed.BatchSize = seedBatchSize
	}
	if seedOrderBatchSize > 0 {
		cfg.Seed.OrderBatchSize = seedOrderBatchSize
	}
	if seedWorkers > 0 {
		cfg.Seed.Workers = seedWorkers
	}
	if seedParallel {
		cfg.Seed.Parallel = true
	}
	if seedRandomSeed != 0 {
		cfg.Seed.RandomSeed = seedRandomSeed
	}
	if seedEmailDomain != "" {
		cfg.Seed.EmailDomain = seedEmailDomain
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	applySeedFlags(cmd)

	// Validate configuration
	if err := cfg.ValidateSeed(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, backend, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(s)

	counts, err := seedStore(ctx, s, backend)
	if err != nil {
		return err
	}

	cmd.Printf("%s %s: %d customers, %d products, %d orders (%d order lines)\n",
		color.GreenString("Seeded"), backend.Name, counts.Customers, counts.Products, counts.Orders, counts.OrderLines)
	return nil
}

// seedStore runs a seeding pass and records its metadata.
func seedStore(ctx context.Context, s store.Store, backend store.Backend) (seed.Counts, error) {
	settings := cfg.SeedSettings(backend.DefaultOrderCount)
	seeder, err := seed.New(s, settings)
	if err != nil {
		return seed.Counts{}, err
	}

	// A run that fails part way must not leave the store looking seeded
	if err := s.SaveMetadata(ctx, map[string]string{"seeded_at": ""}); err != nil {
		return seed.Counts{}, fmt.Errorf("failed to save metadata: %w", err)
	}

	runID := uuid.NewString()
	start := time.Now()
	counts, err := seeder.Run(ctx)
	if err != nil {
		return counts, err
	}

	metadata := db.RunMetadata(map[string]string{
		"backend":          backend.Name,
		"seed_run_id":      runID,
		"seeded_at":        time.Now().UTC().Format(time.RFC3339),
		"seed_duration":    time.Since(start).Round(time.Millisecond).String(),
		"customers":        strconv.FormatInt(counts.Customers, 10),
		"products":         strconv.FormatInt(counts.Products, 10),
		"orders":           strconv.FormatInt(counts.Orders, 10),
		"order_lines":      strconv.FormatInt(counts.OrderLines, 10),
		"random_seed":      strconv.FormatUint(settings.Seed, 10),
		"email_domain":     settings.EmailDomain,
		"order_batch_size": strconv.Itoa(settings.OrderBatchSize),
	})
	if err := s.SaveMetadata(ctx, metadata); err != nil {
		return counts, fmt.Errorf("failed to save metadata: %w", err)
	}

	logging.Info().
		Str("backend", backend.Name).
		Str("run_id", runID).
		Msg("Seeding run recorded")

	return counts, nil
}
