// Package db provides connection management for the benchmark backends.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pgEdge/pgedge-storebench/internal/logging"
)

// DefaultDatabase is used when a MongoDB URL does not name a database.
const DefaultDatabase = "storebench"

// poolConfig parses connString and applies the default pool settings.
func poolConfig(connString string, maxConns int32) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	defaults := DefaultPoolConfig()
	if maxConns <= 0 {
		maxConns = defaults.MaxConns
	}
	config.MaxConns = maxConns
	config.MinConns = min(defaults.MinConns, config.MaxConns)
	config.MaxConnLifetime = defaults.MaxConnLifetime
	config.MaxConnIdleTime = defaults.MaxConnIdleTime
	config.HealthCheckPeriod = defaults.HealthCheckPeriod
	return config, nil
}

// DefaultPoolConfig returns default connection pool configuration.
func DefaultPoolConfig() *pgxpool.Config {
	config, _ := pgxpool.ParseConfig("")

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	return config
}

// Connect establishes a connection pool to the PostgreSQL database. A
// non-positive maxConns selects the default pool size.
func Connect(ctx context.Context, connString string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := poolConfig(connString, maxConns)
	if err != nil {
		return nil, err
	}

	logging.Debug().
		Str("host", config.ConnConfig.Host).
		Uint16("port", config.ConnConfig.Port).
		Str("database", config.ConnConfig.Database).
		Int32("max_conns", config.MaxConns).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.Info().
		Str("host", config.ConnConfig.Host).
		Str("database", config.ConnConfig.Database).
		Int32("max_conns", config.MaxConns).
		Msg("Connected to PostgreSQL")

	return pool, nil
}

// ConnectMongo connects to MongoDB, verifies the connection and returns the
// client together with the database named in the URL.
func ConnectMongo(ctx context.Context, url string, maxPoolSize uint64) (*mongo.Client, *mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(url).
		SetMaxPoolSize(max(maxPoolSize, 1)).
		SetConnectTimeout(10 * time.Second)

	dbName := MongoDatabaseName(url)
	logging.Debug().
		Strs("hosts", clientOpts.Hosts).
		Str("database", dbName).
		Uint64("max_pool_size", maxPoolSize).
		Msg("Connecting to MongoDB")

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logging.Info().
		Strs("hosts", clientOpts.Hosts).
		Str("database", dbName).
		Msg("Connected to MongoDB")

	return client, client.Database(dbName), nil
}

// MongoDatabaseName extracts the database from the path of a MongoDB URL,
// falling back to DefaultDatabase.
func MongoDatabaseName(url string) string {
	rest := url
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	i := strings.Index(rest, "/")
	if i < 0 {
		return DefaultDatabase
	}
	name := rest[i+1:]
	if j := strings.IndexAny(name, "?#"); j >= 0 {
		name = name[:j]
	}
	if name == "" || name == "admin" {
		return DefaultDatabase
	}
	return name
}
