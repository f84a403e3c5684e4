package seed

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// Resolver supplies references to already persisted entities when building
// dependent ones. Every call reads the store, so later samples draw from
// whatever population exists at that moment.
type Resolver struct {
	store   store.Store
	samples [store.KindOrder + 1]atomic.Int64
}

// NewResolver creates a resolver backed by s.
func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// SampleOne returns one uniformly sampled entity of kind. It fails with an
// error matching store.ErrEmptyPopulation when nothing of that kind exists.
func (r *Resolver) SampleOne(ctx context.Context, kind store.EntityKind) (store.Reference, error) {
	ref, err := r.store.SampleIdentity(ctx, kind)
	if err != nil {
		return store.Reference{}, fmt.Errorf("resolve %s: %w", kind, err)
	}
	if ref.ID == "" {
		return store.Reference{}, fmt.Errorf("resolve %s: backend returned an empty identity", kind)
	}
	if kind >= store.KindCustomer && kind <= store.KindOrder {
		r.samples[kind].Add(1)
	}
	return ref, nil
}

// Samples returns how many successful samples of kind were taken.
func (r *Resolver) Samples(kind store.EntityKind) int64 {
	if kind < store.KindCustomer || kind > store.KindOrder {
		return 0
	}
	return r.samples[kind].Load()
}
