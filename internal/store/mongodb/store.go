//-------------------------------------------------------------------------
//
// pgEdge Storage Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package mongodb implements the document Store on MongoDB: customers and
// products in their own collections, order lines embedded in orders.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pgEdge/pgedge-storebench/internal/db"
	"github.com/pgEdge/pgedge-storebench/internal/logging"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// Name is the registered backend name.
const Name = "mongodb"

// DefaultOrderCount is the order count of the document reference profile.
const DefaultOrderCount = 10000

// Store is a MongoDB-backed store.Store.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
	log      zerolog.Logger
}

// New wraps a connected client and database. The store takes ownership of
// the client.
func New(client *mongo.Client, database *mongo.Database) *Store {
	return &Store{
		client:   client,
		database: database,
		log:      logging.Component(Name),
	}
}

// Open connects to the MongoDB URL with a bounded pool.
func Open(ctx context.Context, opts store.Options) (store.Store, error) {
	client, database, err := db.ConnectMongo(ctx, opts.URL, uint64(max(opts.MaxConns, 1)))
	if err != nil {
		return nil, err
	}
	return New(client, database), nil
}

// Name returns the backend name.
func (s *Store) Name() string {
	return Name
}

// ResetSchema drops the entity collections and recreates them with their
// validators and indexes.
func (s *Store) ResetSchema(ctx context.Context) error {
	specs := collectionSpecs()

	for _, spec := range specs {
		if err := s.database.Collection(spec.name).Drop(ctx); err != nil {
			return &store.SchemaError{Backend: Name, Step: "drop " + spec.name, Err: err}
		}
	}

	for _, spec := range specs {
		opts := options.CreateCollection().
			SetValidator(spec.validator).
			SetValidationLevel("strict").
			SetValidationAction("error")
		if err := s.database.CreateCollection(ctx, spec.name, opts); err != nil {
			return &store.SchemaError{Backend: Name, Step: "create " + spec.name, Err: err}
		}
		if _, err := s.database.Collection(spec.name).Indexes().CreateMany(ctx, spec.indexes); err != nil {
			return &store.SchemaError{Backend: Name, Step: "index " + spec.name, Err: err}
		}
		s.log.Debug().Str("collection", spec.name).Msg("Collection created")
	}

	s.log.Info().Msg("Schema reset")
	return nil
}

func collectionFor(kind store.EntityKind) (string, error) {
	switch kind {
	case store.KindCustomer:
		return customersCollection, nil
	case store.KindProduct:
		return productsCollection, nil
	case store.KindOrder:
		return ordersCollection, nil
	}
	return "", fmt.Errorf("unknown entity kind %s", kind)
}

// BulkInsert inserts one batch with an ordered insertMany. On a write
// error the documents before the failing one stay persisted.
func (s *Store) BulkInsert(ctx context.Context, kind store.EntityKind, records []store.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	name, err := collectionFor(kind)
	if err != nil {
		return 0, &store.PersistenceError{Backend: Name, Kind: kind, Op: "insert", Err: err}
	}

	docs := make([]any, len(records))
	for i, r := range records {
		if r.Kind() != kind {
			return 0, store.UnexpectedRecord(Name, kind, r)
		}
		if docs[i], err = toDocument(r); err != nil {
			return 0, &store.PersistenceError{Backend: Name, Kind: kind, Op: "insert", Err: err}
		}
	}

	_, err = s.database.Collection(name).InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return insertedBefore(err, len(docs)), &store.PersistenceError{Backend: Name, Kind: kind, Op: "insert", Err: err}
	}
	return len(docs), nil
}

// insertedBefore returns how many documents of an ordered insertMany were
// written before the first write error. Other failures count as nothing
// written.
func insertedBefore(err error, total int) int {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 {
		return 0
	}
	first := total
	for _, we := range bwe.WriteErrors {
		first = min(first, we.Index)
	}
	return first
}

// SampleIdentity draws one document of kind with $sample.
func (s *Store) SampleIdentity(ctx context.Context, kind store.EntityKind) (store.Reference, error) {
	name, err := collectionFor(kind)
	if err != nil {
		return store.Reference{}, err
	}

	cursor, err := s.database.Collection(name).Aggregate(ctx, samplePipeline(kind))
	if err != nil {
		return store.Reference{}, &store.PersistenceError{Backend: Name, Kind: kind, Op: "sample", Err: err}
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return store.Reference{}, &store.PersistenceError{Backend: Name, Kind: kind, Op: "sample", Err: err}
		}
		return store.Reference{}, store.EmptyPopulation(Name, kind)
	}

	var doc sampleDoc
	if err := cursor.Decode(&doc); err != nil {
		return store.Reference{}, &store.PersistenceError{Backend: Name, Kind: kind, Op: "sample", Err: err}
	}

	ref := store.Reference{ID: store.Identity(doc.ID.Hex())}
	if kind == store.KindProduct {
		if ref.Price, err = fromDecimal128(doc.Price); err != nil {
			return store.Reference{}, &store.PersistenceError{Backend: Name, Kind: kind, Op: "sample", Err: err}
		}
	}
	return ref, nil
}

// RunBenchmarkQuery executes the aggregation pipeline on the orders collection.
func (s *Store) RunBenchmarkQuery(ctx context.Context, q store.BenchmarkQuery) ([]store.CustomerSpend, error) {
	if err := q.Validate(); err != nil {
		return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
	}

	cursor, err := s.database.Collection(ordersCollection).Aggregate(ctx,
		benchmarkPipeline(q, q.Cutoff(time.Now())),
		options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
	}

	var docs []spendDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
	}

	result := make([]store.CustomerSpend, len(docs))
	for i, d := range docs {
		spent, err := fromDecimal128(d.TotalSpent)
		if err != nil {
			return nil, &store.PersistenceError{Backend: Name, Op: "benchmark query", Err: err}
		}
		result[i] = store.CustomerSpend{
			CustomerID:  store.Identity(d.ID.Hex()),
			FirstName:   d.FirstName,
			LastName:    d.LastName,
			Email:       d.Email,
			OrdersCount: d.OrdersCount,
			TotalSpent:  spent,
		}
	}
	return result, nil
}

// Count returns the number of documents of kind.
func (s *Store) Count(ctx context.Context, kind store.EntityKind) (int64, error) {
	name, err := collectionFor(kind)
	if err != nil {
		return 0, err
	}
	n, err := s.database.Collection(name).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, &store.PersistenceError{Backend: Name, Kind: kind, Op: "count", Err: err}
	}
	return n, nil
}

// SaveMetadata upserts run metadata, one document per key.
func (s *Store) SaveMetadata(ctx context.Context, metadata map[string]string) error {
	if len(metadata) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(metadata))
	now := time.Now().UTC()
	for key, value := range metadata {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: key}}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{
				{Key: "value", Value: value},
				{Key: "updatedAt", Value: now},
			}}}).
			SetUpsert(true))
	}
	if _, err := s.database.Collection(metadataCollection).BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	s.log.Debug().Int("keys", len(metadata)).Msg("Saved metadata")
	return nil
}

// Metadata returns the saved run metadata.
func (s *Store) Metadata(ctx context.Context) (map[string]string, error) {
	cursor, err := s.database.Collection(metadataCollection).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var docs []struct {
		Key   string `bson:"_id"`
		Value string `bson:"value"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(docs))
	for _, d := range docs {
		metadata[d.Key] = d.Value
	}
	return metadata, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func init() {
	store.Register(store.Backend{
		Name:              Name,
		Description:       "MongoDB: document collections with embedded order lines and an aggregation pipeline",
		DefaultOrderCount: DefaultOrderCount,
		Open:              Open,
	})
}
