//-------------------------------------------------------------------------
//
// pgEdge Storage Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package postgres implements the relational Store on PostgreSQL: four
// normalized tables with foreign keys, loaded with COPY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-storebench/internal/db"
	"github.com/pgEdge/pgedge-storebench/internal/logging"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// Name is the registered backend name.
const Name = "postgres"

// DefaultOrderCount is the order count of the relational reference profile.
const DefaultOrderCount = 500000

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New wraps an existing pool. The store takes ownership of the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		log:  logging.Component(Name),
	}
}

// Open connects to url with a pool of at most maxConns connections.
func Open(ctx context.Context, opts store.Options) (store.Store, error) {
	pool, err := db.Connect(ctx, opts.URL, int32(opts.MaxConns))
	if err != nil {
		return nil, err
	}
	return New(pool), nil
}

// Name returns the backend name.
func (s *Store) Name() string {
	return Name
}

// ResetSchema drops and recreates the tables, constraints and indexes.
func (s *Store) ResetSchema(ctx context.Context) error {
	steps := []struct {
		name string
		sql  string
	}{
		{"drop", dropSchemaSQL},
		{"create tables", createTablesSQL},
		{"create indexes", createIndexesSQL},
	}

	for _, step := range steps {
		if _, err := s.pool.Exec(ctx, step.sql); err != nil {
			return &store.SchemaError{Backend: Name, Step: step.name, Err: err}
		}
		s.log.Debug().Str("step", step.name).Msg("Schema step complete")
	}

	s.log.Info().Msg("Schema reset")
	return nil
}

// BulkInsert copies one batch. Customers and products are a single COPY;
// an order batch reserves ids and copies orders and lines in one
// transaction. Either way the batch persists fully or not at all.
func (s *Store) BulkInsert(ctx context.Context, kind store.EntityKind, records []store.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var err error
	switch kind {
	case store.KindCustomer:
		err = s.copyCustomers(ctx, records)
	case store.KindProduct:
		err = s.copyProducts(ctx, records)
	case store.KindOrder:
		err = s.insertOrders(ctx, records)
	default:
		err = fmt.Errorf("unknown entity kind %s", kind)
	}
	if err != nil {
		var pe *store.PersistenceError
		if errors.As(err, &pe) {
			return 0, err
		}
		return 0, &store.PersistenceError{Backend: Name, Kind: kind, Op: "insert", Err: err}
	}
	return len(records), nil
}

func (s *Store) copyCustomers(ctx context.Context, records []store.Record) error {
	rows := make([][]any, len(records))
	for i, r := range records {
		c, ok := r.(*store.Customer)
		if !ok {
			return store.UnexpectedRecord(Name, store.KindCustomer, r)
		}
		rows[i] = []any{c.FirstName, c.LastName, c.Email, createdDate(c.CreatedDate)}
	}
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{customersTable}, customerColumns, pgx.CopyFromRows(rows))
	return err
}

func (s *Store) copyProducts(ctx context.Context, records []store.Record) error {
	rows := make([][]any, len(records))
	for i, r := range records {
		p, ok := r.(*store.Product)
		if !ok {
			return store.UnexpectedRecord(Name, store.KindProduct, r)
		}
		rows[i] = []any{p.ProductName, numeric(p.Price), createdDate(p.CreatedDate)}
	}
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{productsTable}, productColumns, pgx.CopyFromRows(rows))
	return err
}

func (s *Store) insertOrders(ctx context.Context, records []store.Record) error {
	orders := make([]*store.Order, len(records))
	for i, r := range records {
		o, ok := r.(*store.Order)
		if !ok {
			return store.UnexpectedRecord(Name, store.KindOrder, r)
		}
		orders[i] = o
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, allocateOrderIDsSQL, len(orders))
	if err != nil {
		return err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return err
	}
	if len(ids) != len(orders) {
		return fmt.Errorf("allocated %d order ids for %d orders", len(ids), len(orders))
	}

	orderRows := make([][]any, 0, len(orders))
	var lineRows [][]any
	for i, o := range orders {
		customerID, err := parseID(o.CustomerID)
		if err != nil {
			return err
		}
		orderRows = append(orderRows, []any{ids[i], customerID, o.OrderDate})
		for _, l := range o.OrderDetails {
			productID, err := parseID(l.ProductID)
			if err != nil {
				return err
			}
			lineRows = append(lineRows, []any{ids[i], productID, int32(l.Quantity), numeric(l.UnitPrice)})
		}
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{ordersTable}, orderColumns, pgx.CopyFromRows(orderRows)); err != nil {
		return err
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{orderDetailsTable}, orderDetailColumns, pgx.CopyFromRows(lineRows)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SampleIdentity picks a uniformly drawn row of kind.
func (s *Store) SampleIdentity(ctx context.Context, kind store.EntityKind) (store.Reference, error) {
	table, key, err := tableFor(kind)
	if err != nil {
		return store.Reference{}, err
	}

	columns := []string{key}
	if kind == store.KindProduct {
		columns = append(columns, "price")
	}
	sql, args, err := sampleQuery(table, key, columns...)
	if err != nil {
		return store.Reference{}, &store.PersistenceError{Backend: Name, Kind: kind, Op: "sample", Err: err}
	}

	var (
		id    int64
		price pgtype.Numeric
	)
	row := s.pool.QueryRow(ctx, sql, args...)
	if kind == store.KindProduct {
		err = row.Scan(&id, &price)
	} else {
		err = row.Scan(&id)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Reference{}, store.EmptyPopulation(Name, kind)
	}
	if err != nil {
		return store.Reference{}, &store.PersistenceError{Backend: Name, Kind: kind, Op: "sample", Err: err}
	}

	ref := store.Reference{ID: formatID(id)}
	if kind == store.KindProduct {
		if ref.Price, err = toDecimal(price); err != nil {
			return store.Reference{}, &store.PersistenceError{Backend: Name, Kind: kind, Op: "sample", Err: err}
		}
	}
	return ref, nil
}

// RunBenchmarkQuery executes the four-way join aggregation.
func (s *Store) RunBenchmarkQuery(ctx context.Context, q store.BenchmarkQuery) ([]store.CustomerSpend, error) {
	if err := q.Validate(); err != nil {
		return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
	}

	sql, args, err := benchmarkQuery(q, q.Cutoff(time.Now()))
	if err != nil {
		return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
	}
	defer rows.Close()

	var result []store.CustomerSpend
	for rows.Next() {
		var (
			id    int64
			row   store.CustomerSpend
			spent pgtype.Numeric
		)
		if err := rows.Scan(&id, &row.FirstName, &row.LastName, &row.Email, &row.OrdersCount, &spent); err != nil {
			return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
		}
		row.CustomerID = formatID(id)
		if row.TotalSpent, err = toDecimal(spent); err != nil {
			return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
	}
	return result, nil
}

// Count returns the number of rows of kind.
func (s *Store) Count(ctx context.Context, kind store.EntityKind) (int64, error) {
	table, _, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	n, err := s.count(ctx, table)
	if err != nil {
		return 0, &store.PersistenceError{Backend: Name, Kind: kind, Op: "count", Err: err}
	}
	return n, nil
}

// CountOrderLines returns the number of order_details rows.
func (s *Store) CountOrderLines(ctx context.Context) (int64, error) {
	n, err := s.count(ctx, orderDetailsTable)
	if err != nil {
		return 0, &store.PersistenceError{Backend: Name, Op: "count order lines", Err: err}
	}
	return n, nil
}

func (s *Store) count(ctx context.Context, table string) (int64, error) {
	sql, args, err := countQuery(table)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.pool.QueryRow(ctx, sql, args...).Scan(&n)
	return n, err
}

// SaveMetadata upserts run metadata into the metadata table.
func (s *Store) SaveMetadata(ctx context.Context, metadata map[string]string) error {
	return db.SaveMetadata(ctx, s.pool, metadata)
}

// Metadata returns the saved run metadata.
func (s *Store) Metadata(ctx context.Context) (map[string]string, error) {
	return db.GetAllMetadata(ctx, s.pool)
}

// Close closes the pool.
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

func formatID(id int64) store.Identity {
	return store.Identity(strconv.FormatInt(id, 10))
}

func parseID(id store.Identity) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identity %q: %w", id, err)
	}
	return n, nil
}

// numeric converts a decimal into a pgx numeric without going through
// floating point.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func toDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("non-finite numeric")
	}
	if !n.Valid || n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

func createdDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func init() {
	store.Register(store.Backend{
		Name:              Name,
		Description:       "PostgreSQL: normalized tables with foreign keys and a four-way join",
		DefaultOrderCount: DefaultOrderCount,
		Open:              Open,
	})
}
