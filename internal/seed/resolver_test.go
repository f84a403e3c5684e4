package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/pgEdge/pgedge-storebench/internal/store"
	"github.com/pgEdge/pgedge-storebench/internal/store/memstore"
)

func TestResolverEmptyPopulation(t *testing.T) {
	r := NewResolver(memstore.New())

	for _, kind := range []store.EntityKind{store.KindCustomer, store.KindProduct} {
		_, err := r.SampleOne(context.Background(), kind)
		if !errors.Is(err, store.ErrEmptyPopulation) {
			t.Errorf("Expected ErrEmptyPopulation for %s, got %v", kind, err)
		}
		if n := r.Samples(kind); n != 0 {
			t.Errorf("Expected 0 samples of %s, got %d", kind, n)
		}
	}
}

func TestResolverSamplesPersistedEntities(t *testing.T) {
	ms := memstore.New()
	seeder, err := New(ms, smallConfig(4, 3, 0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := seeder.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	prices := make(map[store.Identity]string)
	for _, p := range ms.Products() {
		prices[p.ID] = p.Price.String()
	}

	r := NewResolver(ms)
	for range 50 {
		ref, err := r.SampleOne(context.Background(), store.KindProduct)
		if err != nil {
			t.Fatalf("SampleOne failed: %v", err)
		}
		price, ok := prices[ref.ID]
		if !ok {
			t.Fatalf("Sampled unknown product %s", ref.ID)
		}
		if ref.Price.String() != price {
			t.Errorf("Expected price %s for %s, got %s", price, ref.ID, ref.Price)
		}
	}
	if n := r.Samples(store.KindProduct); n != 50 {
		t.Errorf("Expected 50 product samples, got %d", n)
	}
}

func TestResolverCoversPopulation(t *testing.T) {
	ms := memstore.New()
	seeder, err := New(ms, smallConfig(5, 1, 0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := seeder.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	r := NewResolver(ms)
	seen := make(map[store.Identity]bool)
	for range 500 {
		ref, err := r.SampleOne(context.Background(), store.KindCustomer)
		if err != nil {
			t.Fatalf("SampleOne failed: %v", err)
		}
		seen[ref.ID] = true
	}
	if len(seen) != 5 {
		t.Errorf("Expected all 5 customers to be sampled, got %d", len(seen))
	}
}
