package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-storebench/internal/bench"
	"github.com/pgEdge/pgedge-storebench/internal/db"
	"github.com/pgEdge/pgedge-storebench/internal/logging"
)

var (
	benchWindowDays     int
	benchEmailSuffix    string
	benchTopN           int
	benchIterations     int
	benchWarmup         int
	benchConcurrency    int
	benchReportInterval int
	benchSeedFirst      bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time the benchmark query against a seeded store",
	Long: `Run the benchmark query against a store previously populated with the
'seed' command: customers whose email ends with the given suffix, ranked by
what they spent in the trailing window, top N rows.

Warmup runs are executed first and not timed. Timed runs are spread over
the given number of concurrent workers.

Example:
  pgedge-storebench bench --backend postgres --iterations 50 --concurrency 4
  pgedge-storebench bench --backend memory --seed --customers 1000`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchWindowDays, "window-days", 0,
		"trailing order window in days (default: 180)")
	benchCmd.Flags().StringVar(&benchEmailSuffix, "email-suffix", "",
		"customer email suffix to match (default: @example.com)")
	benchCmd.Flags().IntVar(&benchTopN, "top-n", 0,
		"maximum number of result rows (default: 100)")
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 0,
		"number of timed runs (default: 10)")
	benchCmd.Flags().IntVar(&benchWarmup, "warmup", -1,
		"number of untimed warmup runs (default: 1)")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 0,
		"number of concurrent workers (default: 1)")
	benchCmd.Flags().IntVar(&benchReportInterval, "report-interval", 0,
		"statistics reporting interval in seconds (default: off)")
	benchCmd.Flags().BoolVar(&benchSeedFirst, "seed", false,
		"seed the store before timing")

	// Seeding flags apply when --seed is given
	addSeedFlags(benchCmd.Flags())
}

func runBench(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if benchWindowDays > 0 {
		cfg.Bench.WindowDays = benchWindowDays
	}
	if benchEmailSuffix != "" {
		cfg.Bench.EmailSuffix = benchEmailSuffix
	}
	if benchTopN > 0 {
		cfg.Bench.TopN = benchTopN
	}
	if benchIterations > 0 {
		cfg.Bench.Iterations = benchIterations
	}
	if benchWarmup >= 0 {
		cfg.Bench.Warmup = benchWarmup
	}
	if benchConcurrency > 0 {
		cfg.Bench.Concurrency = benchConcurrency
	}
	if benchReportInterval > 0 {
		cfg.Bench.ReportInterval = benchReportInterval
	}
	applySeedFlags(cmd)

	// Validate configuration
	if err := cfg.ValidateBench(); err != nil {
		return err
	}
	if benchSeedFirst {
		if err := cfg.ValidateSeed(); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, backend, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(s)

	if benchSeedFirst {
		if _, err := seedStore(ctx, s, backend); err != nil {
			return err
		}
	}

	// Check the store was seeded
	metadata, err := s.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	if metadata["seeded_at"] == "" {
		return fmt.Errorf("%s store has not been seeded; run 'pgedge-storebench seed' first", backend.Name)
	}
	logging.Info().
		Str("backend", backend.Name).
		Str("seeded_at", metadata["seeded_at"]).
		Str("orders", metadata["orders"]).
		Msg("Using seeded store")

	timer, err := bench.New(s, cfg.BenchSettings())
	if err != nil {
		return err
	}
	res, err := timer.Run(ctx)
	if err != nil {
		return err
	}

	printResult(cmd, res)

	// Record the outcome next to the seeding metadata
	if err := s.SaveMetadata(ctx, db.RunMetadata(map[string]string{
		"last_bench_run_id":  res.RunID,
		"last_bench_at":      time.Now().UTC().Format(time.RFC3339),
		"last_bench_p50_ms":  strconv.FormatFloat(msOf(res.P50), 'f', 3, 64),
		"last_bench_p95_ms":  strconv.FormatFloat(msOf(res.P95), 'f', 3, 64),
		"last_bench_queries": strconv.FormatInt(res.Succeeded, 10),
	})); err != nil {
		logging.Warn().Err(err).Msg("Failed to record benchmark metadata")
	}

	return nil
}

func printResult(cmd *cobra.Command, res *bench.Result) {
	bold := color.New(color.Bold)
	failed := fmt.Sprint(res.Failed)
	if res.Failed > 0 {
		failed = color.RedString(failed)
	}

	cmd.Printf("%s %s on %s\n", bold.Sprint("Benchmark"), color.CyanString(res.RunID), res.Backend)
	cmd.Printf("  queries: %s ok, %s failed in %s (%.2f qps)\n",
		color.GreenString("%d", res.Succeeded), failed, res.Elapsed.Round(time.Millisecond), res.QPS())
	cmd.Printf("  latency ms: min %.3f  mean %.3f  p50 %.3f  p95 %.3f  p99 %.3f  max %.3f\n",
		msOf(res.Min), msOf(res.Mean), msOf(res.P50), msOf(res.P95), msOf(res.P99), msOf(res.Max))
	cmd.Println()

	cmd.Println(bold.Sprintf("  %-4s %-26s %-24s %-40s %8s %14s", "#", "customer", "name", "email", "orders", "total_spent"))
	for i, r := range res.Rows {
		cmd.Printf("  %-4d %-26s %-24s %-40s %8d %14s\n",
			i+1, r.CustomerID, r.FirstName+" "+r.LastName, r.Email, r.OrdersCount, r.TotalSpent.StringFixed(2))
	}
}

func msOf(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
