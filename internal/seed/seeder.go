//-------------------------------------------------------------------------
//
// pgEdge Storage Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package seed drives a full, dependency-ordered seeding run against a
// store: customers and products first, then orders that reference them.
package seed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-storebench/internal/datagen"
	"github.com/pgEdge/pgedge-storebench/internal/logging"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// Phase is the seeding step currently running.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseReset     Phase = "reset"
	PhaseCustomers Phase = "customers"
	PhaseProducts  Phase = "products"
	// PhaseReference is reported while customers and products seed concurrently.
	PhaseReference Phase = "customers+products"
	PhaseOrders    Phase = "orders"
	PhaseDone      Phase = "done"
)

// Counts is the number of entities persisted so far.
type Counts struct {
	Customers  int64
	Products   int64
	Orders     int64
	OrderLines int64
}

// Config controls the size and shape of a seeding run.
type Config struct {
	// CustomerCount, ProductCount and OrderCount are the target counts.
	CustomerCount int
	ProductCount  int
	OrderCount    int

	// BatchSize is the customer and product batch size.
	BatchSize int

	// OrderBatchSize is the order batch size. It is small because every
	// order costs 1 + line count reads before it can be flushed.
	OrderBatchSize int

	// Progress intervals in entities. Zero disables intermediate reports.
	ProgressInterval        int64
	ProductProgressInterval int64
	OrderProgressInterval   int64

	// EmailDomain is the domain of generated customer emails.
	EmailDomain string

	// Workers is the number of goroutines building orders.
	Workers int

	// Parallel seeds customers and products concurrently.
	Parallel bool

	// Seed makes generated values reproducible. Zero seeds from the clock.
	Seed uint64
}

// DefaultConfig returns the reference profile with the document-store order
// count.
func DefaultConfig() Config {
	return Config{
		CustomerCount:           100000,
		ProductCount:            1000,
		OrderCount:              10000,
		BatchSize:               1000,
		OrderBatchSize:          10,
		ProgressInterval:        10000,
		ProductProgressInterval: 200,
		OrderProgressInterval:   1000,
		EmailDomain:             datagen.DefaultEmailDomain,
		Workers:                 1,
	}
}

// Validate checks that the configuration can drive a run.
func (c Config) Validate() error {
	if c.CustomerCount < 0 || c.ProductCount < 0 || c.OrderCount < 0 {
		return fmt.Errorf("entity counts must be non-negative")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if c.OrderBatchSize < 1 {
		return fmt.Errorf("order batch size must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if email := datagen.Email("a", "b", 1, c.EmailDomain); !store.EmailPattern.MatchString(email) {
		return fmt.Errorf("email domain %q does not produce valid addresses (e.g. %q)", c.EmailDomain, email)
	}
	return nil
}

// Seeder carries the state of one seeding run.
type Seeder struct {
	store    store.Store
	cfg      Config
	resolver *Resolver

	mu     sync.Mutex
	phase  Phase
	counts Counts
}

// New creates a seeder for the given store.
func New(s store.Store, cfg Config) (*Seeder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = datagen.DefaultEmailDomain
	}
	return &Seeder{
		store:    s,
		cfg:      cfg,
		resolver: NewResolver(s),
		phase:    PhaseIdle,
	}, nil
}

// Phase returns the current phase.
func (s *Seeder) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Counts returns what has been persisted so far.
func (s *Seeder) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Resolver returns the cross-reference resolver used for orders.
func (s *Seeder) Resolver() *Resolver {
	return s.resolver
}

func (s *Seeder) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Seeder) add(kind store.EntityKind, n, lines int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case store.KindCustomer:
		s.counts.Customers += n
	case store.KindProduct:
		s.counts.Products += n
	case store.KindOrder:
		s.counts.Orders += n
		s.counts.OrderLines += lines
	}
}

func (s *Seeder) fail(phase Phase, batch int, err error) error {
	logging.Error().
		Err(err).
		Str("backend", s.store.Name()).
		Str("phase", string(phase)).
		Int("batch", batch).
		Msg("Seeding failed")
	return &SeedError{Phase: phase, Batch: batch, Counts: s.Counts(), Err: err}
}

func (s *Seeder) newFaker(stream int) *datagen.Faker {
	if s.cfg.Seed == 0 {
		return datagen.NewFaker()
	}
	return datagen.NewFakerWithSeed(s.cfg.Seed + uint64(stream))
}

// Run resets the store and seeds customers, products and orders in that
// order. Any failure ends the run and is returned as a *SeedError.
func (s *Seeder) Run(ctx context.Context) (Counts, error) {
	start := time.Now()

	logging.Info().
		Str("backend", s.store.Name()).
		Int("customers", s.cfg.CustomerCount).
		Int("products", s.cfg.ProductCount).
		Int("orders", s.cfg.OrderCount).
		Int("workers", s.cfg.Workers).
		Bool("parallel", s.cfg.Parallel).
		Msg("Starting seeding run")

	s.setPhase(PhaseReset)
	if err := s.store.ResetSchema(ctx); err != nil {
		return s.Counts(), s.fail(PhaseReset, 0, err)
	}

	if s.cfg.Parallel {
		s.setPhase(PhaseReference)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return s.seedCustomers(gctx) })
		g.Go(func() error { return s.seedProducts(gctx) })
		if err := g.Wait(); err != nil {
			return s.Counts(), err
		}
	} else {
		s.setPhase(PhaseCustomers)
		if err := s.seedCustomers(ctx); err != nil {
			return s.Counts(), err
		}
		s.setPhase(PhaseProducts)
		if err := s.seedProducts(ctx); err != nil {
			return s.Counts(), err
		}
	}

	// Orders only start once both reference phases have completed.
	s.setPhase(PhaseOrders)
	var err error
	if s.cfg.Workers > 1 {
		err = s.seedOrdersConcurrent(ctx)
	} else {
		err = s.seedOrders(ctx)
	}
	if err != nil {
		return s.Counts(), err
	}

	s.setPhase(PhaseDone)
	counts := s.Counts()
	logging.Info().
		Str("backend", s.store.Name()).
		Int64("customers", counts.Customers).
		Int64("products", counts.Products).
		Int64("orders", counts.Orders).
		Int64("order_lines", counts.OrderLines).
		Int64("customer_samples", s.resolver.Samples(store.KindCustomer)).
		Int64("product_samples", s.resolver.Samples(store.KindProduct)).
		Dur("elapsed", time.Since(start)).
		Msg("Seeding complete")

	return counts, nil
}

func (s *Seeder) seedCustomers(ctx context.Context) error {
	f := s.newFaker(0)
	return s.seedIndependent(ctx, PhaseCustomers, store.KindCustomer,
		s.cfg.CustomerCount, s.cfg.ProgressInterval,
		func(seq int) store.Record {
			return datagen.NewCustomer(f, seq, s.cfg.EmailDomain)
		})
}

func (s *Seeder) seedProducts(ctx context.Context) error {
	f := s.newFaker(1)
	return s.seedIndependent(ctx, PhaseProducts, store.KindProduct,
		s.cfg.ProductCount, s.cfg.ProductProgressInterval,
		func(int) store.Record {
			return datagen.NewProduct(f)
		})
}

// seedIndependent seeds a kind that has no references to other entities.
func (s *Seeder) seedIndependent(ctx context.Context, phase Phase, kind store.EntityKind,
	count int, interval int64, build func(seq int) store.Record) error {
	logging.Info().Int("count", count).Msgf("Seeding %ss", kind)
	progress := datagen.NewProgressReporter(kind.String(), int64(count), interval)

	batchNo := 0
	for batch := range datagen.Batches(count, s.cfg.BatchSize, build) {
		batchNo++
		n, err := s.store.BulkInsert(ctx, kind, batch)
		s.add(kind, int64(n), 0)
		progress.Update(int64(n))
		if err != nil {
			return s.fail(phase, batchNo, err)
		}
		logging.Debug().
			Str("entity", kind.String()).
			Int("batch", batchNo).
			Int("rows", n).
			Msg("Batch flushed")
	}

	progress.Done()
	return nil
}

// buildOrder assembles one order. Each line copies the sampled product's
// price at this moment; the value is never touched again.
func (s *Seeder) buildOrder(ctx context.Context, f *datagen.Faker) (*store.Order, error) {
	customer, err := s.resolver.SampleOne(ctx, store.KindCustomer)
	if err != nil {
		return nil, err
	}

	lineCount, err := f.RandomInt(datagen.MinOrderLines, datagen.MaxOrderLines)
	if err != nil {
		return nil, err
	}

	order := &store.Order{
		CustomerID:   customer.ID,
		OrderDate:    f.RandomDate(),
		OrderDetails: make([]store.OrderLine, 0, lineCount),
	}
	for range lineCount {
		product, err := s.resolver.SampleOne(ctx, store.KindProduct)
		if err != nil {
			return nil, err
		}
		qty, err := f.RandomInt(datagen.MinQuantity, datagen.MaxQuantity)
		if err != nil {
			return nil, err
		}
		order.OrderDetails = append(order.OrderDetails, store.OrderLine{
			ProductID: product.ID,
			Quantity:  qty,
			UnitPrice: product.Price,
		})
	}
	return order, nil
}

// orderFlusher batches assembled orders and submits them to the store.
type orderFlusher struct {
	s        *Seeder
	batcher  *datagen.Batcher[store.Record]
	progress *datagen.ProgressReporter
	batchNo  int
}

func (s *Seeder) newOrderFlusher() *orderFlusher {
	return &orderFlusher{
		s:        s,
		batcher:  datagen.NewBatcher[store.Record](s.cfg.OrderBatchSize),
		progress: datagen.NewProgressReporter(store.KindOrder.String(), int64(s.cfg.OrderCount), s.cfg.OrderProgressInterval),
	}
}

func (fl *orderFlusher) add(ctx context.Context, o *store.Order) error {
	if fl.batcher.Add(o) {
		return fl.flush(ctx)
	}
	return nil
}

func (fl *orderFlusher) flush(ctx context.Context) error {
	if fl.batcher.Len() == 0 {
		return nil
	}
	batch := fl.batcher.Take()
	fl.batchNo++

	n, err := fl.s.store.BulkInsert(ctx, store.KindOrder, batch)
	var lines int64
	for _, r := range batch[:n] {
		lines += int64(len(r.(*store.Order).OrderDetails))
	}
	fl.s.add(store.KindOrder, int64(n), lines)
	fl.progress.Update(int64(n))
	if err != nil {
		return fl.s.fail(PhaseOrders, fl.batchNo, err)
	}

	logging.Debug().
		Str("entity", "order").
		Int("batch", fl.batchNo).
		Int("rows", n).
		Int64("lines", lines).
		Msg("Batch flushed")
	return nil
}

func (s *Seeder) seedOrders(ctx context.Context) error {
	logging.Info().Int("count", s.cfg.OrderCount).Msg("Seeding orders")
	f := s.newFaker(2)
	fl := s.newOrderFlusher()

	for range s.cfg.OrderCount {
		o, err := s.buildOrder(ctx, f)
		if err != nil {
			return s.fail(PhaseOrders, fl.batchNo+1, err)
		}
		if err := fl.add(ctx, o); err != nil {
			return err
		}
	}
	if err := fl.flush(ctx); err != nil {
		return err
	}

	fl.progress.Done()
	return nil
}

// seedOrdersConcurrent builds orders on several workers and funnels them to
// a single flusher. Submission order does not follow build order.
func (s *Seeder) seedOrdersConcurrent(ctx context.Context) error {
	logging.Info().
		Int("count", s.cfg.OrderCount).
		Int("workers", s.cfg.Workers).
		Msg("Seeding orders")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	orders := make(chan *store.Order, s.cfg.OrderBatchSize*s.cfg.Workers)
	var (
		next   atomic.Int64
		failed atomic.Bool
	)
	total := int64(s.cfg.OrderCount)

	g, gctx := errgroup.WithContext(ctx)
	for w := range s.cfg.Workers {
		f := s.newFaker(2 + w)
		g.Go(func() error {
			for next.Add(1) <= total {
				o, err := s.buildOrder(gctx, f)
				if err != nil {
					failed.Store(true)
					return err
				}
				select {
				case orders <- o:
				case <-gctx.Done():
					failed.Store(true)
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var buildErr error
	go func() {
		buildErr = g.Wait()
		close(orders)
	}()

	fl := s.newOrderFlusher()
	for o := range orders {
		// Orders still queued after a worker failed are not submitted
		if failed.Load() {
			break
		}
		if err := fl.add(ctx, o); err != nil {
			cancel()
			for range orders {
			}
			return err
		}
	}
	for range orders {
	}
	if buildErr != nil {
		return s.fail(PhaseOrders, fl.batchNo+1, buildErr)
	}
	if err := fl.flush(ctx); err != nil {
		return err
	}

	fl.progress.Done()
	return nil
}
