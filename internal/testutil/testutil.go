//-------------------------------------------------------------------------
//
// pgEdge Storage Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package testutil provides utilities for integration testing.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultTestConnString is the default connection string for tests.
	// Override with PGEDGE_TEST_CONN environment variable.
	DefaultTestConnString = "postgres://postgres@localhost:5432/postgres"

	// DefaultTestMongoURL is the default MongoDB URL for tests.
	// Override with PGEDGE_TEST_MONGO environment variable.
	DefaultTestMongoURL = "mongodb://localhost:27017"

	// TestDBPrefix is the prefix for test databases.
	TestDBPrefix = "storebench_test_"
)

// PostgresAvailable checks if PostgreSQL is available for testing.
// Returns the connection string if available, empty string otherwise.
func PostgresAvailable() string {
	connStr := os.Getenv("PGEDGE_TEST_CONN")
	if connStr == "" {
		connStr = DefaultTestConnString
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return ""
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return ""
	}

	return connStr
}

// SkipIfNoPostgres skips the test if PostgreSQL is not available.
func SkipIfNoPostgres(t *testing.T) string {
	connStr := PostgresAvailable()
	if connStr == "" {
		t.Skip("PostgreSQL not available, skipping integration test")
	}
	return connStr
}

// MongoAvailable checks if MongoDB is available for testing.
// Returns the URL if available, empty string otherwise.
func MongoAvailable() string {
	url := os.Getenv("PGEDGE_TEST_MONGO")
	if url == "" {
		url = DefaultTestMongoURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(url).
		SetServerSelectionTimeout(3*time.Second))
	if err != nil {
		return ""
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		return ""
	}

	return url
}

// SkipIfNoMongo skips the test if MongoDB is not available.
func SkipIfNoMongo(t *testing.T) string {
	url := MongoAvailable()
	if url == "" {
		t.Skip("MongoDB not available, skipping integration test")
	}
	return url
}

// randomDBName returns a unique database name for name.
func randomDBName(t *testing.T, name string) string {
	t.Helper()

	// Generate random suffix for database name
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		t.Fatalf("Failed to generate random database name: %v", err)
	}
	return TestDBPrefix + name + "_" + hex.EncodeToString(randomBytes)
}

// CreateTestDB creates a test database and returns the connection string.
func CreateTestDB(t *testing.T, baseConnStr, name string) string {
	t.Helper()

	dbName := randomDBName(t, name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect to default database to create test database
	pool, err := pgxpool.New(ctx, baseConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Build the connection string manually since ConnString() doesn't reflect
	// changes made to ConnConfig.Database
	config, err := pgxpool.ParseConfig(baseConnStr)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	cc := config.ConnConfig

	if cc.Password != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cc.User, cc.Password, cc.Host, cc.Port, dbName)
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", cc.User, cc.Host, cc.Port, dbName)
}

// DropTestDB drops the test database.
func DropTestDB(t *testing.T, baseConnStr, dbName string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, baseConnStr)
	if err != nil {
		t.Logf("Warning: Failed to connect to drop test database: %v", err)
		return
	}
	defer pool.Close()

	// Terminate connections to the database
	_, _ = pool.Exec(ctx, `
        SELECT pg_terminate_backend(pid)
        FROM pg_stat_activity
        WHERE datname = $1 AND pid <> pg_backend_pid()
    `, dbName)

	_, err = pool.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
	if err != nil {
		t.Logf("Warning: Failed to drop test database: %v", err)
	}
}

// GetDBNameFromConnStr extracts the database name from a connection string.
func GetDBNameFromConnStr(connStr string) string {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return ""
	}
	return config.ConnConfig.Database
}

// CreateTestMongoDB returns a URL naming a fresh MongoDB database. MongoDB
// creates the database on first write.
func CreateTestMongoDB(t *testing.T, baseURL, name string) (url, dbName string) {
	t.Helper()

	dbName = randomDBName(t, name)
	return mongoURLWithDatabase(baseURL, dbName), dbName
}

// mongoURLWithDatabase replaces the database path of a MongoDB URL.
func mongoURLWithDatabase(baseURL, dbName string) string {
	scheme, rest := "", baseURL
	if i := strings.Index(rest, "://"); i >= 0 {
		scheme, rest = rest[:i+3], rest[i+3:]
	}
	query := ""
	if i := strings.Index(rest, "?"); i >= 0 {
		rest, query = rest[:i], rest[i:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return scheme + rest + "/" + dbName + query
}

// DropTestMongoDB drops a MongoDB test database.
func DropTestMongoDB(t *testing.T, baseURL, dbName string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(baseURL))
	if err != nil {
		t.Logf("Warning: Failed to connect to drop test database: %v", err)
		return
	}
	defer client.Disconnect(ctx)

	if err := client.Database(dbName).Drop(ctx); err != nil {
		t.Logf("Warning: Failed to drop test database: %v", err)
	}
}

// TestCleanup is a helper that cleans up test resources.
type TestCleanup struct {
	t      *testing.T
	drop   func()
	closer func()
}

// NewTestCleanup creates a cleanup helper for a PostgreSQL test database.
func NewTestCleanup(t *testing.T, baseConnStr, dbName string) *TestCleanup {
	return &TestCleanup{
		t:    t,
		drop: func() { DropTestDB(t, baseConnStr, dbName) },
	}
}

// NewMongoTestCleanup creates a cleanup helper for a MongoDB test database.
func NewMongoTestCleanup(t *testing.T, baseURL, dbName string) *TestCleanup {
	return &TestCleanup{
		t:    t,
		drop: func() { DropTestMongoDB(t, baseURL, dbName) },
	}
}

// SetCloser sets a function run before the database is dropped, usually
// closing the store under test.
func (tc *TestCleanup) SetCloser(closer func()) {
	tc.closer = closer
}

// Cleanup performs the cleanup.
// The database is only dropped if the test passed; on failure it remains
// for diagnostic purposes.
func (tc *TestCleanup) Cleanup() {
	if tc.closer != nil {
		tc.closer()
	}
	if tc.t.Failed() {
		tc.t.Log("Test failed - keeping database for diagnostics")
		return
	}
	tc.drop()
}
