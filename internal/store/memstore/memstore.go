// Package memstore implements an in-process Store. It honours the same
// constraints as the database backends (unique emails, references to
// existing customers and products, non-atomic batches) and is used for dry
// runs and tests.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-storebench/internal/datagen"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// Name is the registered backend name.
const Name = "memory"

// Store is a mutex-guarded in-memory Store.
type Store struct {
	mu sync.Mutex

	faker *datagen.Faker
	now   func() time.Time

	nextID     int64
	customers  []store.Customer
	customerIx map[store.Identity]int
	emails     map[string]struct{}
	products   []store.Product
	productIx  map[store.Identity]int
	orders     []store.Order
	metadata   map[string]string

	failures map[store.EntityKind]failure
}

type failure struct {
	after int
	err   error
}

// New creates an empty store.
func New() *Store {
	s := &Store{
		faker:    datagen.NewFaker(),
		now:      time.Now,
		metadata: make(map[string]string),
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.nextID = 0
	s.customers = nil
	s.customerIx = make(map[store.Identity]int)
	s.emails = make(map[string]struct{})
	s.products = nil
	s.productIx = make(map[store.Identity]int)
	s.orders = nil
}

// Name returns the backend name.
func (s *Store) Name() string {
	return Name
}

// ResetSchema discards all entities. Run metadata is kept.
func (s *Store) ResetSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &store.SchemaError{Backend: Name, Step: "reset", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// InjectFailure makes BulkInsert of kind fail once after more records of
// that kind have been persisted than the given count.
func (s *Store) InjectFailure(kind store.EntityKind, after int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures == nil {
		s.failures = make(map[store.EntityKind]failure)
	}
	s.failures[kind] = failure{after: after, err: err}
}

// BulkInsert persists records one at a time and stops at the first
// violation, leaving the earlier records of the batch in place.
func (s *Store) BulkInsert(ctx context.Context, kind store.EntityKind, records []store.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &store.PersistenceError{Backend: Name, Kind: kind, Op: "insert", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range records {
		if r.Kind() != kind {
			return i, store.UnexpectedRecord(Name, kind, r)
		}
		if err := s.checkFailure(kind); err != nil {
			return i, &store.PersistenceError{Backend: Name, Kind: kind, Op: "insert", Err: err}
		}

		var err error
		switch rec := r.(type) {
		case *store.Customer:
			err = s.insertCustomer(rec)
		case *store.Product:
			err = s.insertProduct(rec)
		case *store.Order:
			err = s.insertOrder(rec)
		default:
			return i, store.UnexpectedRecord(Name, kind, r)
		}
		if err != nil {
			return i, &store.PersistenceError{Backend: Name, Kind: kind, Op: "insert", Err: err}
		}
	}
	return len(records), nil
}

func (s *Store) checkFailure(kind store.EntityKind) error {
	f, ok := s.failures[kind]
	if !ok || s.countLocked(kind) < int64(f.after) {
		return nil
	}
	delete(s.failures, kind)
	return f.err
}

func (s *Store) newID(prefix string) store.Identity {
	s.nextID++
	return store.Identity(prefix + strconv.FormatInt(s.nextID, 10))
}

func (s *Store) insertCustomer(c *store.Customer) error {
	if !store.EmailPattern.MatchString(c.Email) {
		return fmt.Errorf("email %q does not match %s", c.Email, store.EmailPatternSource)
	}
	// Exact match, like the unique indexes of both database backends
	if _, dup := s.emails[c.Email]; dup {
		return fmt.Errorf("duplicate email %q", c.Email)
	}

	rec := *c
	rec.ID = s.newID("c")
	s.emails[c.Email] = struct{}{}
	s.customerIx[rec.ID] = len(s.customers)
	s.customers = append(s.customers, rec)
	return nil
}

func (s *Store) insertProduct(p *store.Product) error {
	if p.Price.IsNegative() {
		return fmt.Errorf("negative price %s", p.Price)
	}

	rec := *p
	rec.ID = s.newID("p")
	s.productIx[rec.ID] = len(s.products)
	s.products = append(s.products, rec)
	return nil
}

func (s *Store) insertOrder(o *store.Order) error {
	if _, ok := s.customerIx[o.CustomerID]; !ok {
		return fmt.Errorf("customer %q does not exist", o.CustomerID)
	}
	if len(o.OrderDetails) == 0 {
		return fmt.Errorf("order has no details")
	}
	for _, l := range o.OrderDetails {
		if _, ok := s.productIx[l.ProductID]; !ok {
			return fmt.Errorf("product %q does not exist", l.ProductID)
		}
		if l.Quantity < datagen.MinQuantity || l.Quantity > datagen.MaxQuantity {
			return fmt.Errorf("quantity %d out of range", l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return fmt.Errorf("negative unit price %s", l.UnitPrice)
		}
	}

	rec := *o
	rec.ID = s.newID("o")
	rec.OrderDetails = slices.Clone(o.OrderDetails)
	s.orders = append(s.orders, rec)
	return nil
}

// SampleIdentity picks uniformly from the entities persisted at call time.
func (s *Store) SampleIdentity(ctx context.Context, kind store.EntityKind) (store.Reference, error) {
	if err := ctx.Err(); err != nil {
		return store.Reference{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := int(s.countLocked(kind))
	if n == 0 {
		return store.Reference{}, store.EmptyPopulation(Name, kind)
	}
	i := s.faker.Int(0, n-1)

	switch kind {
	case store.KindCustomer:
		return store.Reference{ID: s.customers[i].ID}, nil
	case store.KindProduct:
		p := s.products[i]
		return store.Reference{ID: p.ID, Price: p.Price}, nil
	default:
		return store.Reference{ID: s.orders[i].ID}, nil
	}
}

// RunBenchmarkQuery aggregates spend per customer the same way the SQL and
// aggregation-pipeline versions do.
func (s *Store) RunBenchmarkQuery(ctx context.Context, q store.BenchmarkQuery) ([]store.CustomerSpend, error) {
	if err := q.Validate(); err != nil {
		return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := q.Cutoff(s.now())
	rows := make(map[store.Identity]*store.CustomerSpend)

	for _, o := range s.orders {
		if o.OrderDate.Before(cutoff) {
			continue
		}
		c := s.customers[s.customerIx[o.CustomerID]]
		if !strings.HasSuffix(c.Email, q.EmailSuffix) {
			continue
		}

		spent := decimal.Zero
		joined := false
		for _, l := range o.OrderDetails {
			if _, ok := s.productIx[l.ProductID]; !ok {
				continue
			}
			joined = true
			spent = spent.Add(l.Total())
		}
		if !joined {
			continue
		}

		row, ok := rows[c.ID]
		if !ok {
			row = &store.CustomerSpend{
				CustomerID: c.ID,
				FirstName:  c.FirstName,
				LastName:   c.LastName,
				Email:      c.Email,
				TotalSpent: decimal.Zero,
			}
			rows[c.ID] = row
		}
		row.OrdersCount++
		row.TotalSpent = row.TotalSpent.Add(spent)
	}

	result := make([]store.CustomerSpend, 0, len(rows))
	for _, row := range rows {
		result = append(result, *row)
	}
	slices.SortFunc(result, func(a, b store.CustomerSpend) int {
		if c := b.TotalSpent.Cmp(a.TotalSpent); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	if len(result) > q.TopN {
		result = result[:q.TopN]
	}
	return result, nil
}

// Count returns the number of persisted entities of kind.
func (s *Store) Count(ctx context.Context, kind store.EntityKind) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(kind), nil
}

func (s *Store) countLocked(kind store.EntityKind) int64 {
	switch kind {
	case store.KindCustomer:
		return int64(len(s.customers))
	case store.KindProduct:
		return int64(len(s.products))
	case store.KindOrder:
		return int64(len(s.orders))
	}
	return 0
}

// SaveMetadata upserts run metadata.
func (s *Store) SaveMetadata(ctx context.Context, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range metadata {
		s.metadata[k] = v
	}
	return nil
}

// Metadata returns a copy of the saved run metadata.
func (s *Store) Metadata(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op; data stays readable for inspection.
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// Customers returns a copy of the persisted customers.
func (s *Store) Customers() []store.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.customers)
}

// Products returns a copy of the persisted products.
func (s *Store) Products() []store.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.products)
}

// Orders returns a copy of the persisted orders.
func (s *Store) Orders() []store.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o
		out[i].OrderDetails = slices.Clone(o.OrderDetails)
	}
	return out
}

// SetProductPrice changes a persisted product price. Existing order lines
// keep the price they were built with.
func (s *Store) SetProductPrice(id store.Identity, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.productIx[id]
	if !ok {
		return fmt.Errorf("product %q does not exist", id)
	}
	s.products[i].Price = price
	return nil
}

// SetClock overrides the time source used for the benchmark window.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func init() {
	store.Register(store.Backend{
		Name:              Name,
		Description:       "In-process store for dry runs and tests",
		DefaultOrderCount: 10000,
		Open: func(ctx context.Context, opts store.Options) (store.Store, error) {
			return New(), nil
		},
	})
}
