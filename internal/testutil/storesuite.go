package testutil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-storebench/internal/datagen"
	"github.com/pgEdge/pgedge-storebench/internal/seed"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// RunStoreSuite exercises a freshly opened backend end to end: schema reset,
// sampling, a small seeding run, constraint enforcement, the benchmark query
// and run metadata. The store is left reset but not closed.
func RunStoreSuite(t *testing.T, s store.Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	t.Run("ResetIsIdempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if err := s.ResetSchema(ctx); err != nil {
				t.Fatalf("ResetSchema %d failed: %v", i+1, err)
			}
		}
		expectCounts(t, ctx, s, 0, 0, 0)
	})

	t.Run("SampleEmptyPopulation", func(t *testing.T) {
		for _, kind := range store.Kinds() {
			_, err := s.SampleIdentity(ctx, kind)
			if !errors.Is(err, store.ErrEmptyPopulation) {
				t.Errorf("Expected ErrEmptyPopulation for %s, got %v", kind, err)
			}
		}
	})

	var counts seed.Counts
	t.Run("SeedSmallRun", func(t *testing.T) {
		cfg := seed.DefaultConfig()
		cfg.CustomerCount = 5
		cfg.ProductCount = 3
		cfg.OrderCount = 10
		cfg.BatchSize = 2
		cfg.OrderBatchSize = 3
		cfg.Seed = 42

		seeder, err := seed.New(s, cfg)
		if err != nil {
			t.Fatalf("seed.New failed: %v", err)
		}
		counts, err = seeder.Run(ctx)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if counts.OrderLines < 10 || counts.OrderLines > 50 {
			t.Errorf("Expected 10-50 order lines, got %d", counts.OrderLines)
		}
		expectCounts(t, ctx, s, 5, 3, 10)
	})

	t.Run("SampleAfterSeed", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			ref, err := s.SampleIdentity(ctx, store.KindProduct)
			if err != nil {
				t.Fatalf("SampleIdentity failed: %v", err)
			}
			if ref.ID == "" {
				t.Fatal("Sampled product has empty identity")
			}
			if ref.Price.IsNegative() || ref.Price.IsZero() {
				t.Errorf("Sampled product has price %s", ref.Price)
			}
		}
		ref, err := s.SampleIdentity(ctx, store.KindCustomer)
		if err != nil || ref.ID == "" {
			t.Fatalf("Expected a customer identity, got %q (%v)", ref.ID, err)
		}
	})

	t.Run("DuplicateEmailRejected", func(t *testing.T) {
		dup := datagen.NewCustomer(datagen.NewFakerWithSeed(42), 1, datagen.DefaultEmailDomain)
		first := []store.Record{dup}
		if _, err := s.BulkInsert(ctx, store.KindCustomer, first); err != nil {
			// The seeded run may already hold this address.
			var pe *store.PersistenceError
			if !errors.As(err, &pe) {
				t.Fatalf("Expected PersistenceError, got %T: %v", err, err)
			}
			return
		}
		_, err := s.BulkInsert(ctx, store.KindCustomer, first)
		var pe *store.PersistenceError
		if !errors.As(err, &pe) {
			t.Fatalf("Expected PersistenceError on duplicate email, got %v", err)
		}
	})

	t.Run("BenchmarkQuery", func(t *testing.T) {
		rows, err := s.RunBenchmarkQuery(ctx, store.BenchmarkQuery{
			WindowDays:  180,
			EmailSuffix: "@example.com",
			TopN:        100,
		})
		if err != nil {
			t.Fatalf("RunBenchmarkQuery failed: %v", err)
		}
		if len(rows) > 6 {
			t.Errorf("Expected at most 6 rows, got %d", len(rows))
		}
		for i, r := range rows {
			if !strings.HasSuffix(r.Email, "@example.com") {
				t.Errorf("Row %d has email %s", i, r.Email)
			}
			if r.OrdersCount < 1 {
				t.Errorf("Row %d has %d orders", i, r.OrdersCount)
			}
			if i > 0 && rows[i-1].TotalSpent.LessThan(r.TotalSpent) {
				t.Errorf("Rows not ordered by spend at %d: %s < %s",
					i, rows[i-1].TotalSpent, r.TotalSpent)
			}
		}

		none, err := s.RunBenchmarkQuery(ctx, store.BenchmarkQuery{
			WindowDays:  180,
			EmailSuffix: "@nowhere.invalid",
			TopN:        100,
		})
		if err != nil {
			t.Fatalf("RunBenchmarkQuery failed: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("Expected no rows for unmatched suffix, got %d", len(none))
		}
	})

	t.Run("Metadata", func(t *testing.T) {
		if err := s.SaveMetadata(ctx, map[string]string{"seeded_at": "now", "backend": s.Name()}); err != nil {
			t.Fatalf("SaveMetadata failed: %v", err)
		}
		if err := s.SaveMetadata(ctx, map[string]string{"seeded_at": "later"}); err != nil {
			t.Fatalf("SaveMetadata failed: %v", err)
		}
		if err := s.ResetSchema(ctx); err != nil {
			t.Fatalf("ResetSchema failed: %v", err)
		}
		md, err := s.Metadata(ctx)
		if err != nil {
			t.Fatalf("Metadata failed: %v", err)
		}
		if md["seeded_at"] != "later" {
			t.Errorf("Expected seeded_at 'later', got %q", md["seeded_at"])
		}
		if md["backend"] != s.Name() {
			t.Errorf("Expected backend %q, got %q", s.Name(), md["backend"])
		}
		expectCounts(t, ctx, s, 0, 0, 0)
	})
}

func expectCounts(t *testing.T, ctx context.Context, s store.Store, customers, products, orders int64) {
	t.Helper()
	want := map[store.EntityKind]int64{
		store.KindCustomer: customers,
		store.KindProduct:  products,
		store.KindOrder:    orders,
	}
	for _, kind := range store.Kinds() {
		n, err := s.Count(ctx, kind)
		if err != nil {
			t.Fatalf("Count %s failed: %v", kind, err)
		}
		if n != want[kind] {
			t.Errorf("Expected %d %s rows, got %d", want[kind], kind, n)
		}
	}
}
