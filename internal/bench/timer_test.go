package bench

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-storebench/internal/seed"
	"github.com/pgEdge/pgedge-storebench/internal/store"
	"github.com/pgEdge/pgedge-storebench/internal/store/memstore"
)

func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	ms := memstore.New()
	cfg := seed.DefaultConfig()
	cfg.CustomerCount = 20
	cfg.ProductCount = 5
	cfg.OrderCount = 60
	cfg.Seed = 7
	seeder, err := seed.New(ms, cfg)
	if err != nil {
		t.Fatalf("seed.New failed: %v", err)
	}
	if _, err := seeder.Run(context.Background()); err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}
	return ms
}

func TestTimerRun(t *testing.T) {
	tests := []struct {
		name        string
		iterations  int
		concurrency int
	}{
		{"sequential", 5, 1},
		{"concurrent", 12, 4},
		{"more workers than iterations", 2, 8},
	}

	ms := seededStore(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Iterations = tt.iterations
			cfg.Concurrency = tt.concurrency

			timer, err := New(ms, cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			res, err := timer.Run(context.Background())
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			if len(res.Latencies) != tt.iterations {
				t.Errorf("Expected %d latencies, got %d", tt.iterations, len(res.Latencies))
			}
			if res.Succeeded != int64(tt.iterations) || res.Failed != 0 {
				t.Errorf("Expected %d successes and 0 failures, got %d and %d", tt.iterations, res.Succeeded, res.Failed)
			}
			if !(res.Min <= res.P50 && res.P50 <= res.P95 && res.P95 <= res.P99 && res.P99 <= res.Max) {
				t.Errorf("Statistics out of order: %+v", res)
			}
			if res.Mean < res.Min || res.Mean > res.Max {
				t.Errorf("Mean %s outside [%s, %s]", res.Mean, res.Min, res.Max)
			}
			if _, err := uuid.Parse(res.RunID); err != nil {
				t.Errorf("RunID %q is not a UUID: %v", res.RunID, err)
			}
			if res.Backend != memstore.Name {
				t.Errorf("Expected backend %s, got %s", memstore.Name, res.Backend)
			}
			if len(res.Rows) > cfg.Query.TopN {
				t.Errorf("Expected at most %d rows, got %d", cfg.Query.TopN, len(res.Rows))
			}
		})
	}
}

// flakyStore fails every other benchmark query.
type flakyStore struct {
	*memstore.Store
	calls atomic.Int64
	fail  func(n int64) bool
}

func (f *flakyStore) RunBenchmarkQuery(ctx context.Context, q store.BenchmarkQuery) ([]store.CustomerSpend, error) {
	if f.fail(f.calls.Add(1)) {
		return nil, errors.New("query timeout")
	}
	return f.Store.RunBenchmarkQuery(ctx, q)
}

func TestTimerCountsFailures(t *testing.T) {
	fs := &flakyStore{Store: seededStore(t), fail: func(n int64) bool { return n%2 == 0 }}
	cfg := DefaultConfig()
	cfg.Warmup = 0
	cfg.Iterations = 6

	timer, err := New(fs, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res, err := timer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Succeeded != 3 || res.Failed != 3 {
		t.Errorf("Expected 3 successes and 3 failures, got %d and %d", res.Succeeded, res.Failed)
	}
	if len(res.Latencies) != 3 {
		t.Errorf("Expected 3 latencies, got %d", len(res.Latencies))
	}
}

func TestTimerAllFailed(t *testing.T) {
	fs := &flakyStore{Store: memstore.New(), fail: func(int64) bool { return true }}
	cfg := DefaultConfig()
	cfg.Iterations = 3

	timer, err := New(fs, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := timer.Run(context.Background()); err == nil {
		t.Error("Expected error when every query fails, got nil")
	}
}

func TestTimerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	timer, err := New(memstore.New(), DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := timer.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"no warmup", func(c *Config) { c.Warmup = 0 }, false},
		{"negative warmup", func(c *Config) { c.Warmup = -1 }, true},
		{"zero iterations", func(c *Config) { c.Iterations = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"zero top n", func(c *Config) { c.Query.TopN = 0 }, true},
		{"negative window", func(c *Config) { c.Query.WindowDays = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	r := &Result{}
	for i := 1; i <= 100; i++ {
		r.Latencies = append(r.Latencies, time.Duration(i)*time.Millisecond)
	}
	if err := r.summarize(); err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if r.Min != time.Millisecond || r.Max != 100*time.Millisecond {
		t.Errorf("Expected min 1ms and max 100ms, got %s and %s", r.Min, r.Max)
	}
	if r.Mean != 50500*time.Microsecond {
		t.Errorf("Expected mean 50.5ms, got %s", r.Mean)
	}
	if r.P50 < 49*time.Millisecond || r.P50 > 51*time.Millisecond {
		t.Errorf("Expected p50 near 50ms, got %s", r.P50)
	}
	if r.P99 < 98*time.Millisecond {
		t.Errorf("Expected p99 near 99ms, got %s", r.P99)
	}
}
