package store

import "context"

// Store is the storage adapter contract. It is the only component that talks
// to an external database.
type Store interface {
	// Name returns the backend name.
	Name() string

	// ResetSchema drops and recreates the entity containers together with
	// their validation rules, constraints and indexes. Calling it twice in
	// a row leaves an empty, correctly indexed store both times.
	ResetSchema(ctx context.Context) error

	// BulkInsert inserts records of a single kind in as few round trips as
	// the backend allows and returns the number inserted. Batches are not
	// atomic; a failure may leave part of the batch persisted.
	BulkInsert(ctx context.Context, kind EntityKind, records []Record) (int, error)

	// SampleIdentity returns one uniformly sampled persisted entity of kind.
	// It returns an error matching ErrEmptyPopulation when none exist.
	SampleIdentity(ctx context.Context, kind EntityKind) (Reference, error)

	// RunBenchmarkQuery executes the fixed per-customer spend aggregation.
	RunBenchmarkQuery(ctx context.Context, q BenchmarkQuery) ([]CustomerSpend, error)

	// Count returns the number of persisted entities of kind.
	Count(ctx context.Context, kind EntityKind) (int64, error)

	// SaveMetadata upserts key/value run metadata.
	SaveMetadata(ctx context.Context, metadata map[string]string) error

	// Metadata returns all saved run metadata. A store that was never
	// seeded returns an empty map.
	Metadata(ctx context.Context) (map[string]string, error)

	// Close releases connections.
	Close(ctx context.Context) error
}

// Options configures how a backend connects.
type Options struct {
	// URL is the backend connection string.
	URL string

	// MaxConns bounds the connection pool. Zero selects the backend default.
	MaxConns int
}
