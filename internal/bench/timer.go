//-------------------------------------------------------------------------
//
// pgEdge Storage Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package bench times the benchmark query against a seeded store.
package bench

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/pgEdge/pgedge-storebench/internal/logging"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// Config holds configuration for the timer.
type Config struct {
	Query store.BenchmarkQuery

	// Warmup runs are executed first and not timed.
	Warmup int

	// Iterations is the number of timed runs.
	Iterations int

	// Concurrency is the number of workers sharing the timed runs.
	Concurrency int

	// ReportInterval logs running statistics; zero disables it.
	ReportInterval time.Duration
}

// DefaultConfig returns the default timer configuration.
func DefaultConfig() Config {
	return Config{
		Query: store.BenchmarkQuery{
			WindowDays:  180,
			EmailSuffix: "@example.com",
			TopN:        100,
		},
		Warmup:      1,
		Iterations:  10,
		Concurrency: 1,
	}
}

// Validate checks the timer configuration.
func (c Config) Validate() error {
	if err := c.Query.Validate(); err != nil {
		return err
	}
	if c.Warmup < 0 {
		return fmt.Errorf("warmup must be non-negative")
	}
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}

// Result summarizes one timed run.
type Result struct {
	RunID      string
	Backend    string
	Iterations int
	Succeeded  int64
	Failed     int64
	Elapsed    time.Duration

	// Latencies of the successful runs, in execution order.
	Latencies []time.Duration

	Min, Mean, P50, P95, P99, Max time.Duration

	// Rows is the result of the last successful execution.
	Rows []store.CustomerSpend
}

// Timer executes the benchmark query and records latencies.
type Timer struct {
	store store.Store
	cfg   Config

	// Metrics
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	elapsedNs atomic.Int64
}

// New creates a timer for s.
func New(s store.Store, cfg Config) (*Timer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Timer{store: s, cfg: cfg}, nil
}

// Run executes the warmup and timed runs. Individual query failures are
// counted; Run only fails when the context ends or no timed run succeeded.
func (t *Timer) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	log := logging.Component("bench").With().
		Str("run_id", runID).
		Str("backend", t.store.Name()).
		Logger()

	log.Info().
		Int("warmup", t.cfg.Warmup).
		Int("iterations", t.cfg.Iterations).
		Int("concurrency", t.cfg.Concurrency).
		Int("window_days", t.cfg.Query.WindowDays).
		Str("email_suffix", t.cfg.Query.EmailSuffix).
		Int("top_n", t.cfg.Query.TopN).
		Msg("Starting benchmark")

	for i := range t.cfg.Warmup {
		if _, err := t.store.RunBenchmarkQuery(ctx, t.cfg.Query); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("warmup", i+1).Msg("Warmup query failed")
		}
	}

	latencies := make([]time.Duration, t.cfg.Iterations)
	ok := make([]bool, t.cfg.Iterations)
	var (
		next     atomic.Int64
		mu       sync.Mutex
		lastIter = -1
		lastRows []store.CustomerSpend
		lastErr  error
	)

	reportCtx, stopReport := context.WithCancel(ctx)
	defer stopReport()
	if t.cfg.ReportInterval > 0 {
		go t.reporter(reportCtx)
	}

	start := time.Now()
	var wg sync.WaitGroup
	for w := range t.cfg.Concurrency {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= t.cfg.Iterations || ctx.Err() != nil {
					return
				}

				qStart := time.Now()
				rows, err := t.store.RunBenchmarkQuery(ctx, t.cfg.Query)
				d := time.Since(qStart)

				t.total.Add(1)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					t.failed.Add(1)
					mu.Lock()
					lastErr = err
					mu.Unlock()
					log.Debug().Err(err).Int("worker_id", workerID).Int("iteration", i+1).Msg("Query failed")
					continue
				}

				t.succeeded.Add(1)
				t.elapsedNs.Add(int64(d))
				latencies[i] = d
				ok[i] = true

				mu.Lock()
				if i > lastIter {
					lastIter, lastRows = i, rows
				}
				mu.Unlock()

				log.Debug().
					Int("worker_id", workerID).
					Int("iteration", i+1).
					Int("rows", len(rows)).
					Float64("latency_ms", ms(d)).
					Msg("Query complete")
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)
	stopReport()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:      runID,
		Backend:    t.store.Name(),
		Iterations: t.cfg.Iterations,
		Succeeded:  t.succeeded.Load(),
		Failed:     t.failed.Load(),
		Elapsed:    elapsed,
		Rows:       lastRows,
	}
	for i, d := range latencies {
		if ok[i] {
			res.Latencies = append(res.Latencies, d)
		}
	}
	if len(res.Latencies) == 0 {
		return res, fmt.Errorf("all %d benchmark queries failed: %w", t.cfg.Iterations, lastErr)
	}
	if err := res.summarize(); err != nil {
		return res, err
	}

	res.LogSummary()
	return res, nil
}

// summarize fills in the latency statistics.
func (r *Result) summarize() error {
	data := make(stats.Float64Data, len(r.Latencies))
	for i, d := range r.Latencies {
		data[i] = float64(d)
	}

	var err error
	value := func(f func(stats.Float64Data) (float64, error)) time.Duration {
		if err != nil {
			return 0
		}
		var v float64
		v, err = f(data)
		return time.Duration(v)
	}
	percentile := func(p float64) func(stats.Float64Data) (float64, error) {
		return func(d stats.Float64Data) (float64, error) { return stats.Percentile(d, p) }
	}

	r.Min = value(stats.Min)
	r.Mean = value(stats.Mean)
	r.P50 = value(percentile(50))
	r.P95 = value(percentile(95))
	r.P99 = value(percentile(99))
	r.Max = value(stats.Max)
	if err != nil {
		return fmt.Errorf("failed to compute latency statistics: %w", err)
	}
	return nil
}

// QPS returns completed queries per second of wall time.
func (r *Result) QPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Succeeded) / r.Elapsed.Seconds()
}

// LogSummary logs the final statistics of the run.
func (r *Result) LogSummary() {
	logging.Info().
		Str("run_id", r.RunID).
		Str("backend", r.Backend).
		Dur("duration", r.Elapsed).
		Int64("successful", r.Succeeded).
		Int64("failed", r.Failed).
		Float64("avg_qps", r.QPS()).
		Float64("min_ms", ms(r.Min)).
		Float64("mean_ms", ms(r.Mean)).
		Float64("p50_ms", ms(r.P50)).
		Float64("p95_ms", ms(r.P95)).
		Float64("p99_ms", ms(r.P99)).
		Float64("max_ms", ms(r.Max)).
		Int("rows", len(r.Rows)).
		Msg("Benchmark summary")
}

func (t *Timer) reporter(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.ReportInterval)
	defer ticker.Stop()

	var lastTotal int64
	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			total := t.total.Load()
			succeeded := t.succeeded.Load()

			// Calculate rate since last report
			rate := float64(total-lastTotal) / now.Sub(lastTime).Seconds()

			var avgLatencyMs float64
			if succeeded > 0 {
				avgLatencyMs = float64(t.elapsedNs.Load()) / float64(succeeded) / 1e6
			}

			logging.Info().
				Int64("total", total).
				Int64("success", succeeded).
				Int64("failed", t.failed.Load()).
				Float64("rate_qps", rate).
				Float64("avg_latency_ms", avgLatencyMs).
				Msg("Statistics")

			lastTotal = total
			lastTime = now
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
